package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/source"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/worker"
)

type Source interface {
	ListBlocks(ctx context.Context, start, end uint64) ([]uint64, error)
	FetchBlock(ctx context.Context, slot uint64) (*ledger.Block, error)
}

type Processor interface {
	Process(blk *ledger.Block, slot uint64) []model.Transfer
}

type Publisher interface {
	PublishBatch(ctx context.Context, batch []model.Transfer) int
}

type Config struct {
	BatchWidth     uint64
	Concurrency    int
	ErrorBackoff   time.Duration // after a failed listing
	IdleSleep      time.Duration // after an empty listing
	PacingInterval time.Duration // after a dispatched batch
}

// Outcome of one Step.
type Outcome int

const (
	Dispatched Outcome = iota
	Idle
	ListFailed
)

// Scheduler walks the chain forward from a start slot in fixed-width ranges
// and hands every listed block to a bounded pool. The cursor only ever moves
// forward; a block that fails after dispatch is dropped, not re-requested.
type Scheduler struct {
	cfg  Config
	src  Source
	proc Processor
	pub  Publisher
	log  *zap.Logger

	cursor atomic.Uint64
	pool   *worker.Pool
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, start uint64, src Source, proc Processor, pub Publisher, log *zap.Logger) *Scheduler {
	if cfg.BatchWidth == 0 {
		cfg.BatchWidth = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 20
	}
	if log == nil {
		log = zap.NewNop()
	}
	// Units run detached from the caller's context so a block already
	// dispatched is finished and published on shutdown.
	s := &Scheduler{
		cfg:   cfg,
		src:   src,
		proc:  proc,
		pub:   pub,
		log:   log.With(zap.String("component", "scheduler")),
		pool:  worker.New(context.Background(), cfg.Concurrency),
		sleep: sleepCtx,
	}
	s.cursor.Store(start)
	metrics.Cursor.Set(float64(start))
	return s
}

// Cursor is the first slot of the next range to list.
func (s *Scheduler) Cursor() uint64 { return s.cursor.Load() }

// InFlight counts dispatched blocks not yet handled.
func (s *Scheduler) InFlight() int64 { return s.pool.InFlight() }

// Run loops until ctx ends, then waits for dispatched blocks to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("start",
		zap.Uint64("cursor", s.Cursor()),
		zap.Uint64("batch_width", s.cfg.BatchWidth),
		zap.Int("concurrency", s.cfg.Concurrency))

	defer func() {
		s.pool.Wait()
		s.log.Info("stopped", zap.Uint64("cursor", s.Cursor()))
	}()

	for {
		out, err := s.Step(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var wait time.Duration
		switch out {
		case ListFailed:
			s.log.Warn("list blocks failed",
				zap.Uint64("start", s.Cursor()),
				zap.Uint64("end", s.Cursor()+s.cfg.BatchWidth),
				zap.Error(err))
			wait = s.cfg.ErrorBackoff
		case Idle:
			wait = s.cfg.IdleSleep
		case Dispatched:
			wait = s.cfg.PacingInterval
		}
		if err := s.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Step lists [cursor, cursor+width) once and dispatches what it finds. The
// cursor advances only when the listing succeeded and was non-empty.
func (s *Scheduler) Step(ctx context.Context) (Outcome, error) {
	start := s.Cursor()
	end := start + s.cfg.BatchWidth

	slots, err := s.src.ListBlocks(ctx, start, end)
	if err != nil {
		metrics.ListErrors.Inc()
		return ListFailed, err
	}
	if len(slots) == 0 {
		metrics.EmptyRanges.Inc()
		return Idle, nil
	}
	metrics.BlocksListed.Add(float64(len(slots)))

	for _, slot := range slots {
		slot := slot
		s.pool.Submit(func(ctx context.Context) { s.handle(ctx, slot) })
	}

	s.cursor.Store(end)
	metrics.Cursor.Set(float64(end))
	s.log.Debug("batch dispatched",
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.Int("blocks", len(slots)))
	return Dispatched, nil
}

// Wait blocks until every dispatched block has been handled.
func (s *Scheduler) Wait() { s.pool.Wait() }

func (s *Scheduler) handle(ctx context.Context, slot uint64) {
	began := time.Now()
	blk, err := s.src.FetchBlock(ctx, slot)
	metrics.FetchDuration.Observe(time.Since(began).Seconds())
	if err != nil {
		reason := "fetch_failed"
		if errors.Is(err, source.ErrSlotUnavailable) {
			reason = "slot_unavailable"
		}
		metrics.BlocksDropped.WithLabelValues(reason).Inc()
		s.log.Warn("block dropped", zap.Uint64("slot", slot), zap.String("reason", reason), zap.Error(err))
		return
	}
	metrics.BlocksFetched.Inc()

	batch := s.proc.Process(blk, slot)
	if len(batch) == 0 {
		return
	}
	s.pub.PublishBatch(ctx, batch)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
