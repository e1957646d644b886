package processor

import (
	"time"

	"go.uber.org/zap"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/ledger"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/model"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/normalize"
	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/registry"
)

// Processor extracts transfers from a fetched block. It holds no per-block
// state and is shared by every worker.
type Processor struct {
	reg *registry.Registry
	log *zap.Logger
	now func() time.Time
}

func New(reg *registry.Registry, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{
		reg: reg,
		log: log.With(zap.String("component", "processor")),
		now: time.Now,
	}
}

// Process returns the block's transfers in instruction order: for each
// successful transaction, top-level instructions first, then the inner
// groups as they appear in meta. Every record carries the same timestamp,
// taken once when processing starts.
func (p *Processor) Process(blk *ledger.Block, slot uint64) []model.Transfer {
	if blk == nil {
		return nil
	}
	ts := p.now().Unix()

	var out []model.Transfer
	for i := range blk.Transactions {
		tx := &blk.Transactions[i]
		switch {
		case tx.Meta == nil:
			metrics.TransactionsSkipped.WithLabelValues("no_meta").Inc()
			continue
		case tx.Meta.Failed():
			metrics.TransactionsSkipped.WithLabelValues("failed").Inc()
			continue
		case !tx.Transaction.JSON || !tx.Transaction.Message.Parsed:
			metrics.TransactionsSkipped.WithLabelValues("not_parsed").Inc()
			continue
		}

		tc := normalize.TxContext{
			Signature: tx.Transaction.Signature(),
			Slot:      slot,
			Timestamp: ts,
		}
		out = p.appendAll(out, tc, tx.Transaction.Message.Instructions)
		for _, group := range tx.Meta.InnerInstructions {
			out = p.appendAll(out, tc, group.Instructions)
		}
	}

	if len(out) > 0 {
		p.log.Debug("block processed",
			zap.Uint64("slot", slot),
			zap.Int("transactions", len(blk.Transactions)),
			zap.Int("transfers", len(out)))
	}
	return out
}

func (p *Processor) appendAll(out []model.Transfer, tc normalize.TxContext, ixs []ledger.Instruction) []model.Transfer {
	for _, ix := range ixs {
		v := normalize.Classify(p.reg, ix)
		metrics.InstructionsSeen.WithLabelValues(v.Kind.String()).Inc()
		t, ok := normalize.Build(tc, v)
		if !ok {
			continue
		}
		metrics.TransfersNormalized.WithLabelValues(t.Symbol).Inc()
		out = append(out, t)
	}
	return out
}
