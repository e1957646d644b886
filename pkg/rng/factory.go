package rng

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

type Mode int

const (
	Deterministic Mode = iota
	Real
)

// Stream names used by the mock ledger. Each gets its own sequence so adding
// draws to one does not shift the others.
const (
	TxCount    = "tx_count"
	TxKind     = "tx_kind"
	Payer      = "payer_pick"
	Payee      = "payee_pick"
	Lamports   = "lamports"
	TokenPick  = "token_pick"
	TokenUnits = "token_units"
	SkipSlot   = "skip_slot"
	Failure    = "failure"
)

type Factory struct {
	baseSeed int64
	mode     Mode

	mu      sync.Mutex
	streams map[string]*rand.Rand
}

func New(mode Mode, seed int64) *Factory {
	if mode == Real {
		// seeded once from the clock; draws are still reproducible within a run
		seed = time.Now().UnixNano()
	}
	return &Factory{
		baseSeed: seed,
		mode:     mode,
		streams:  make(map[string]*rand.Rand),
	}
}

func (f *Factory) Seed() int64 { return f.baseSeed }

// R returns the named stream, creating it on first use. The returned
// *rand.Rand is not goroutine-safe; callers that share it must serialize.
func (f *Factory) R(name string) *rand.Rand {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r, ok := f.streams[name]; ok {
		return r
	}
	s := deriveSeed(f.baseSeed, name)
	r := rand.New(rand.NewSource(s))
	f.streams[name] = r
	return r
}

func deriveSeed(base int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64()) ^ base
}
