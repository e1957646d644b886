package retry

import (
	"context"
	"errors"
	"time"
)

type Class int

const (
	Retryable Class = iota
	Fatal
)

type Policy struct {
	MaxAttempts int           // e.g. 3
	Delay       time.Duration // fixed pause between attempts, e.g. 200ms

	// Classify decides whether an error is retryable.
	// If nil, default: retry on any non-nil error.
	Classify func(error) Class

	// OnRetry is optional hook for logging/metrics.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry: attempts exhausted")

type exhausted struct {
	attempts int
	err      error
}

func (e *exhausted) Error() string {
	return ErrExhausted.Error() + ": " + e.err.Error()
}

func (e *exhausted) Unwrap() []error { return []error{ErrExhausted, e.err} }

func (e *exhausted) Attempts() int { return e.attempts }

// Do calls fn until it succeeds, returns a Fatal error, the context ends or
// MaxAttempts is used up. Fatal errors come back unwrapped.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Delay < 0 {
		p.Delay = 0
	}

	classify := p.Classify
	if classify == nil {
		classify = func(error) Class { return Retryable }
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if classify(err) == Fatal {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, p.Delay, err)
		}
		if p.Delay == 0 {
			continue
		}

		timer := time.NewTimer(p.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return &exhausted{attempts: p.MaxAttempts, err: lastErr}
}
