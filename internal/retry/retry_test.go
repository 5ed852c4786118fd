package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errFlaky = errors.New("flaky")

func TestRunSucceedsAfterFailures(t *testing.T) {
	var calls, between int
	cfg := DefaultConfig()
	cfg.Between = func(_ context.Context, attempt int, err error) {
		between++
		assert.Equal(t, calls, attempt)
		assert.ErrorIs(t, err, errFlaky)
	}

	out := Run(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errFlaky
		}
		return nil
	})

	assert.True(t, out.OK())
	assert.False(t, out.Exhausted)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 2, between)
}

func TestRunExhausts(t *testing.T) {
	var between int
	cfg := DefaultConfig()
	cfg.Between = func(context.Context, int, error) { between++ }

	out := Run(context.Background(), cfg, func(context.Context) error { return errFlaky })

	assert.True(t, out.Exhausted)
	assert.Equal(t, 3, out.Attempts)
	assert.ErrorIs(t, out.Err, errFlaky)
	assert.Equal(t, 2, between, "no recovery step after the last attempt")
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.InitialWait = time.Hour

	calls := 0
	out := Run(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return errFlaky
	})

	assert.Equal(t, 1, calls)
	assert.False(t, out.Exhausted)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestRunRequiresAttempts(t *testing.T) {
	out := Run(context.Background(), Config{}, func(context.Context) error { return nil })
	assert.ErrorIs(t, out.Err, ErrNoAttempts)
}

func TestBackoffCapped(t *testing.T) {
	cfg := Config{InitialWait: time.Second, MaxWait: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, backoff(cfg, 1))
	assert.Equal(t, 2*time.Second, backoff(cfg, 2))
	assert.Equal(t, 3*time.Second, backoff(cfg, 3))
	assert.Zero(t, backoff(Config{}, 5))
}
