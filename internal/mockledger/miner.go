package mockledger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Miner struct {
	chain *Chain
	gen   *Generator
	tick  time.Duration
	now   func() time.Time
	log   *zap.Logger
}

func NewMiner(chain *Chain, gen *Generator, tick time.Duration, log *zap.Logger) *Miner {
	if tick <= 0 {
		tick = 400 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Miner{
		chain: chain,
		gen:   gen,
		tick:  tick,
		now:   time.Now,
		log:   log.With(zap.String("component", "miner")),
	}
}

// Warmup decides n slots immediately, back-dating their block times one tick
// apart so the last one lands at now.
func (m *Miner) Warmup(n int) {
	if n <= 0 {
		return
	}
	start := m.now().Add(-time.Duration(n-1) * m.tick)
	for i := 0; i < n; i++ {
		m.mineOne(start.Add(time.Duration(i) * m.tick))
	}
	head, _ := m.chain.Head()
	m.log.Info("warmup done", zap.Int("slots", n), zap.Uint64("head", head))
}

// Run decides one slot per tick until ctx ends.
func (m *Miner) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.mineOne(now)
		}
	}
}

func (m *Miner) mineOne(at time.Time) {
	slot := m.chain.NextSlot()
	if m.gen.Skip() {
		m.chain.Skip(slot)
		m.log.Debug("slot skipped", zap.Uint64("slot", slot))
		return
	}

	var (
		parentSlot uint64
		parentHash = "11111111111111111111111111111111"
		height     uint64
	)
	if prev, ps, ok := m.chain.LastBlock(); ok {
		parentSlot = ps
		parentHash = prev.Blockhash
		if prev.BlockHeight != nil {
			height = *prev.BlockHeight + 1
		}
	}

	blk := m.gen.Block(slot, parentSlot, parentHash, at.Unix(), height)
	m.chain.Append(slot, blk)
	m.log.Debug("block produced",
		zap.Uint64("slot", slot),
		zap.Int("transactions", len(blk.Transactions)))
}
