package out

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

type PublisherConfig struct {
	// MinNativeAmount drops native-asset records whose amount is not
	// strictly greater than it. Token records are never filtered.
	MinNativeAmount float64
	// Timeout bounds each record's send.
	Timeout time.Duration
}

// Publisher fans a block's transfers out to the producer. Delivery failures
// are logged and counted, never returned: the caller's block is done either
// way.
type Publisher struct {
	cfg     PublisherConfig
	prod    Producer
	printer *Printer
	log     *zap.Logger
}

func NewPublisher(cfg PublisherConfig, prod Producer, printer *Printer, log *zap.Logger) *Publisher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{
		cfg:     cfg,
		prod:    prod,
		printer: printer,
		log:     log.With(zap.String("component", "publisher")),
	}
}

// Keep reports whether t passes the publish filter.
func (p *Publisher) Keep(t model.Transfer) bool {
	return t.Symbol != registry.NativeSymbol || t.Amount > p.cfg.MinNativeAmount
}

// PublishBatch sends every kept record concurrently and returns once all of
// them have been acked, failed or timed out. It returns the number acked.
func (p *Publisher) PublishBatch(ctx context.Context, batch []model.Transfer) int {
	var (
		g     errgroup.Group
		acked = make([]bool, len(batch))
	)
	for i, t := range batch {
		if !p.Keep(t) {
			metrics.TransfersFiltered.WithLabelValues(t.Symbol).Inc()
			continue
		}
		i, t := i, t
		g.Go(func() error {
			acked[i] = p.publishOne(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range acked {
		if ok {
			n++
		}
	}
	return n
}

func (p *Publisher) publishOne(ctx context.Context, t model.Transfer) bool {
	value, err := json.Marshal(t)
	if err != nil {
		metrics.PublishFailures.WithLabelValues(t.Symbol).Inc()
		p.log.Error("encode transfer", zap.String("signature", t.Signature), zap.Error(err))
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	if err := p.prod.Send(sendCtx, t.Signature, value); err != nil {
		metrics.PublishFailures.WithLabelValues(t.Symbol).Inc()
		p.log.Warn("publish failed",
			zap.String("signature", t.Signature),
			zap.Uint64("slot", t.BlockSlot),
			zap.String("symbol", t.Symbol),
			zap.Error(err))
		return false
	}

	metrics.TransfersPublished.WithLabelValues(t.Symbol).Inc()
	if p.printer != nil {
		p.printer.Print(t)
	}
	return true
}
