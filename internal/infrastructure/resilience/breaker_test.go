package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errCollector = errors.New("collector unavailable")

func outcome(ok bool) func(context.Context) error {
	return func(context.Context) error {
		if ok {
			return nil
		}
		return errCollector
	}
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Timeout: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name: "opens after consecutive failures",
			settings: Settings{
				Timeout:     time.Minute,
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 3 },
			},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name: "success resets the failure run",
			settings: Settings{
				Timeout:     time.Minute,
				ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
			},
			requests:      []bool{false, true, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", tt.settings)
			for _, ok := range tt.requests {
				breaker.Do(context.Background(), outcome(ok))
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerOpenRejects(t *testing.T) {
	breaker := New("test", Settings{
		Timeout:     time.Minute,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	require.ErrorIs(t, breaker.Do(context.Background(), outcome(false)), errCollector)

	called := false
	err := breaker.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	breaker := New("test", Settings{
		MaxRequests: 2,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	breaker.Do(context.Background(), outcome(false))
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(context.Background(), outcome(true)))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(context.Background(), outcome(true)))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("test", Settings{
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	breaker.Do(context.Background(), outcome(false))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	breaker.Do(context.Background(), outcome(false))
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})
	breaker.Do(context.Background(), outcome(false))
	time.Sleep(20 * time.Millisecond)

	probing := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		breaker.Do(context.Background(), func(context.Context) error {
			close(probing)
			<-release
			return nil
		})
	}()

	<-probing
	assert.ErrorIs(t, breaker.Do(context.Background(), outcome(true)), ErrTooManyRequests)
	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCanceledContextIsNeutral(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	err := breaker.Do(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Zero(t, breaker.Counts().Requests)

	assert.ErrorIs(t, breaker.Do(ctx, outcome(true)), context.Canceled)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	breaker := New("test", Settings{
		Interval:    10 * time.Millisecond,
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 2 },
	})

	breaker.Do(context.Background(), outcome(false))
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)

	time.Sleep(20 * time.Millisecond)
	breaker.Do(context.Background(), outcome(false))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
	})

	assert.Panics(t, func() {
		breaker.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}

func TestLogStateChanges(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	breaker := New("remote-sink", Settings{
		Timeout:       time.Minute,
		ReadyToTrip:   func(c Counts) bool { return c.ConsecutiveFailures >= 1 },
		OnStateChange: LogStateChanges(zap.New(core)),
	})

	breaker.Do(context.Background(), outcome(false))

	entries := logs.FilterMessage("Circuit breaker state changed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "open", entries[0].ContextMap()["to"])
	assert.Equal(t, "remote-sink", entries[0].ContextMap()["breaker"])
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
