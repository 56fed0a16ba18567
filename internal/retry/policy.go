// Package retry backs off and retries best-effort bookkeeping writes such as
// history rows and build notifications. The generator itself is never retried.
package retry

import (
	"context"
	"log/slog"
	"time"

	foundation "git.home.luguber.info/inful/docgen/internal/foundation/errors"
)

// Backoff selects how the delay grows between attempts.
type Backoff string

const (
	BackoffFixed       Backoff = "fixed"
	BackoffLinear      Backoff = "linear"
	BackoffExponential Backoff = "exponential"
)

// Policy is immutable after construction.
type Policy struct {
	Mode       Backoff
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // attempts after the first failure
}

// DefaultPolicy retries twice, 100ms then 200ms.
func DefaultPolicy() Policy {
	return Policy{Mode: BackoffLinear, Initial: 100 * time.Millisecond, Max: time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy; zero or unknown values fall back to DefaultPolicy.
func NewPolicy(mode Backoff, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	switch mode {
	case BackoffFixed, BackoffLinear, BackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the wait before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case BackoffFixed:
		d = p.Initial
	case BackoffExponential:
		if n > 30 {
			return p.Max
		}
		d = p.Initial * (1 << (n - 1))
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// Validate reports policies that cannot be applied.
func (p Policy) Validate() error {
	switch {
	case p.Initial <= 0:
		return foundation.ValidationError("retry initial delay must be > 0").Build()
	case p.Max <= 0:
		return foundation.ValidationError("retry max delay must be > 0").Build()
	case p.MaxRetries < 0:
		return foundation.ValidationError("retry count cannot be negative").Build()
	}
	return nil
}

// Do calls fn until it succeeds, the retries are used up, ctx is done, or fn
// returns a classified error that forbids retrying. Unclassified errors are
// retried. It returns fn's last error, or ctx.Err() if the context ended a
// wait.
func (p Policy) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	err := fn(ctx)
	for n := 1; err != nil && n <= p.MaxRetries; n++ {
		if classified, ok := foundation.AsClassified(err); ok && !classified.CanRetry() {
			slog.Debug("Not retrying", slog.String("op", op), slog.String("category", string(classified.Category())))
			return err
		}
		delay := p.Delay(n)
		slog.Debug("Retrying", slog.String("op", op), slog.Int("attempt", n), slog.Duration("delay", delay), slog.Any("error", err))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		err = fn(ctx)
	}
	return err
}
