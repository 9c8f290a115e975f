package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/strandworks/strand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct {
	code int
}

func (e *statusErr) Error() string   { return fmt.Sprintf("api error %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDo(t *testing.T) {
	transient := &strand.TransportError{Op: "read", Err: errors.New("connection reset")}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		result, err := Do(context.Background(), fastConfig(5), func() (string, error) {
			calls++
			if calls < 3 {
				return "", transient
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls)
	})

	t.Run("non-transient error returns immediately", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastConfig(5), func() (string, error) {
			calls++
			return "", &strand.ProtocolError{Reason: "bad frame"}
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausts attempts and returns last error", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fastConfig(3), func() (string, error) {
			calls++
			return "", transient
		})

		assert.ErrorIs(t, err, transient)
		assert.Equal(t, 3, calls)
	})

	t.Run("context cancellation interrupts backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := Config{MaxAttempts: 5, InitialDelay: time.Hour, Multiplier: 2.0, MaxDelay: time.Hour}

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		_, err := Do(ctx, cfg, func() (string, error) {
			return "", transient
		})

		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestConfigDelay(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}

	assert.Equal(t, 100*time.Millisecond, cfg.Delay(0))
	assert.Equal(t, 200*time.Millisecond, cfg.Delay(1))
	assert.Equal(t, 400*time.Millisecond, cfg.Delay(2))
	// Capped at MaxDelay.
	assert.Equal(t, time.Second, cfg.Delay(10))
	// Negative attempts clamp to zero.
	assert.Equal(t, 100*time.Millisecond, cfg.Delay(-1))
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"transport error", &strand.TransportError{Op: "dial", Err: errors.New("refused")}, true},
		{"wrapped transport error", fmt.Errorf("stream: %w", &strand.TransportError{Op: "read", Err: errors.New("reset")}), true},
		{"protocol error", &strand.ProtocolError{Reason: "bad frame"}, false},
		{"rate limit 429", &statusErr{code: 429}, true},
		{"server error 503", &statusErr{code: 503}, true},
		{"bad request 400", &statusErr{code: 400}, false},
		{"unauthorized 401", &statusErr{code: 401}, false},
		{"message pattern", errors.New("upstream: connection reset by peer"), true},
		{"plain error", errors.New("invalid model name"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}
