package worker

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chenzhangda16/sol-transferpipe/internal/transferpipe/metrics"
)

// Unit is one block's worth of work. Units report their own failures; the
// pool never cancels siblings.
type Unit func(ctx context.Context)

// Pool runs at most limit units at a time. It lives for the whole run, so a
// slow block from one batch can overlap the next batch.
type Pool struct {
	ctx      context.Context
	g        errgroup.Group
	inFlight atomic.Int64
}

func New(ctx context.Context, limit int) *Pool {
	if limit <= 0 {
		limit = 1
	}
	p := &Pool{ctx: ctx}
	p.g.SetLimit(limit)
	return p
}

// Submit blocks until a slot is free, then starts u.
func (p *Pool) Submit(u Unit) {
	p.g.Go(func() error {
		n := p.inFlight.Add(1)
		metrics.InFlight.Set(float64(n))
		defer func() {
			n := p.inFlight.Add(-1)
			metrics.InFlight.Set(float64(n))
		}()
		u(p.ctx)
		return nil
	})
}

// InFlight is the number of units currently running.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Wait blocks until every submitted unit has returned.
func (p *Pool) Wait() {
	_ = p.g.Wait()
}
