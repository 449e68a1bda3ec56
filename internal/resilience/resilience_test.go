package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDoVal_SuccessAfterRetry(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("temporary"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_NonTransientStopsImmediately(t *testing.T) {
	var calls int
	_, err := DoVal(context.Background(), fastRetry(5), func(_ context.Context) (int, error) {
		calls++
		return 0, errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ExhaustsAttempts(t *testing.T) {
	var calls int
	var retried []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	_, err := DoVal(context.Background(), cfg, func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 502)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoVal_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	_, err := DoVal(ctx, fastRetry(3), func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("down"), 503)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(4, 100, 1000)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, time.Second, cfg.MaxBackoff)

	def := FromSettings(0, 0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, def.MaxAttempts)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 429)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid json")))
}

func TestStatusError(t *testing.T) {
	err := StatusError("ademe", http.StatusServiceUnavailable)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "status 503")

	err = StatusError("ademe", http.StatusBadRequest)
	assert.False(t, IsTransient(err))
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	b := NewBreaker("ademe", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	now := time.Now()
	b.now = func() time.Time { return now }

	fail := func(_ context.Context) (int, error) {
		return 0, NewTransientError(errors.New("down"), 503)
	}
	ok := func(_ context.Context) (int, error) { return 1, nil }

	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, CircuitClosed, b.State())
	_, _ = Call(context.Background(), b, fail)
	assert.Equal(t, CircuitOpen, b.State())

	_, err := Call(context.Background(), b, ok)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, b.State())

	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, CircuitClosed, b.State())
}

func TestBreaker_IgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker("geocode", BreakerConfig{FailureThreshold: 1})
	_, _ = Call(context.Background(), b, func(_ context.Context) (int, error) {
		return 0, errors.New("bad request")
	})
	assert.Equal(t, CircuitClosed, b.State())
	assert.Equal(t, "open", CircuitOpen.String())
}
