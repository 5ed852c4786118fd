// Package retry runs an operation a bounded number of times with an optional
// recovery step and backoff between attempts.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrNoAttempts is returned when a Config allows no attempts.
var ErrNoAttempts = errors.New("retry: no attempts allowed")

// Config holds retry configuration.
type Config struct {
	MaxAttempts int           // Maximum number of attempts, at least 1
	InitialWait time.Duration // Wait before the second attempt; 0 disables waiting
	MaxWait     time.Duration // Maximum wait time
	Multiplier  float64       // Backoff multiplier
	Jitter      float64       // Jitter factor (0-1)

	// Between runs after every failed attempt that will be retried. It is not
	// run after the final attempt.
	Between func(ctx context.Context, attempt int, err error)
}

// DefaultConfig returns three attempts without waiting.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		MaxWait:     10 * time.Second,
		Multiplier:  2.0,
	}
}

// Outcome reports how a run ended.
type Outcome struct {
	Attempts  int
	Err       error // last attempt error, nil on success
	Exhausted bool  // every attempt failed
}

// OK reports whether an attempt succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Run calls fn until it succeeds or MaxAttempts is reached. A cancelled
// context stops the run early; Outcome.Err is then the context error and
// Exhausted is false.
func Run(ctx context.Context, cfg Config, fn func(ctx context.Context) error) Outcome {
	if cfg.MaxAttempts < 1 {
		return Outcome{Err: ErrNoAttempts}
	}

	var out Outcome
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		out.Attempts = attempt
		err := fn(ctx)
		if err == nil {
			out.Err = nil
			return out
		}
		out.Err = err

		if attempt == cfg.MaxAttempts {
			break
		}
		if cfg.Between != nil {
			cfg.Between(ctx, attempt, err)
		}
		if err := wait(ctx, backoff(cfg, attempt)); err != nil {
			out.Err = err
			return out
		}
	}

	out.Exhausted = true
	return out
}

func backoff(cfg Config, attempt int) time.Duration {
	if cfg.InitialWait <= 0 {
		return 0
	}
	mult := cfg.Multiplier
	if mult <= 0 {
		mult = 1
	}
	w := float64(cfg.InitialWait) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxWait > 0 && w > float64(cfg.MaxWait) {
		w = float64(cfg.MaxWait)
	}
	if cfg.Jitter > 0 {
		w += w * cfg.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(w)
}

func wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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
