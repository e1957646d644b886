package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/admin"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/config"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/out"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/processor"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/scheduler"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/source"
)

// App is the ingestion pipeline: RPC source, scheduler, processor and Kafka
// publisher, plus the optional admin server.
type App struct {
	cfg   config.Config
	log   *zap.Logger
	src   *source.RPCSource
	prod  out.Producer
	sched *scheduler.Scheduler
	admin *admin.Server
}

// New connects to Kafka and then builds the pipeline.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, console io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	prod, err := out.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, out.NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	a, err := Build(ctx, cfg, log, prod, console)
	if err != nil {
		_ = prod.Close()
		return nil, err
	}
	return a, nil
}

// Build assembles the pipeline around an existing producer. The start slot is
// the chain's latest slot at the configured commitment.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger, prod out.Producer, console io.Writer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	reg := registry.Default(cfg.Tokens...)
	log.Info("registry loaded", zap.Int("tokens", reg.Len()))

	src, err := source.New(source.Config{
		Endpoint:    cfg.Source.RPCURL,
		Commitment:  cfg.Source.Commitment,
		MaxAttempts: cfg.Source.MaxAttempts,
		RetryDelay:  cfg.Source.RetryDelay,
	}, log)
	if err != nil {
		return nil, err
	}

	start, err := src.LatestSlot(ctx)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("initial slot: %w", err)
	}

	var printer *out.Printer
	if cfg.Publish.Console && console != nil {
		printer = out.NewPrinter(console)
	}
	pub := out.NewPublisher(out.PublisherConfig{
		MinNativeAmount: cfg.Publish.MinNativeAmount,
		Timeout:         cfg.Publish.Timeout,
	}, prod, printer, log)

	sched := scheduler.New(scheduler.Config{
		BatchWidth:     cfg.Ingest.BatchWidth,
		Concurrency:    cfg.Ingest.Concurrency,
		ErrorBackoff:   cfg.Ingest.ErrorBackoff,
		IdleSleep:      cfg.Ingest.IdleSleep,
		PacingInterval: cfg.Ingest.PacingInterval,
	}, start, src, processor.New(reg, log), pub, log)

	a := &App{
		cfg:   cfg,
		log:   log,
		src:   src,
		prod:  prod,
		sched: sched,
	}
	if cfg.Admin.Addr != "" {
		a.admin = admin.New(cfg.Admin.Addr, sched, log)
	}

	log.Info("pipeline ready",
		zap.String("rpc", cfg.Source.RPCURL),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.Uint64("start_slot", start))
	return a, nil
}

// Cursor is the scheduler's next slot.
func (a *App) Cursor() uint64 { return a.sched.Cursor() }

// Run blocks until ctx ends or the admin server fails. Cancellation is a
// clean stop and returns nil.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sched.Run(ctx) })
	if a.admin != nil {
		g.Go(func() error {
			if err := a.admin.Serve(ctx); err != nil {
				return fmt.Errorf("admin: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Close() error {
	return errors.Join(a.prod.Close(), a.src.Close())
}
