package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(threshold int, recovery time.Duration, required int) (*breaker, *time.Time) {
	b := newBreaker(threshold, recovery, required)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b, _ := newTestBreaker(5, time.Minute, 3)

	for i := 0; i < 4; i++ {
		b.recordFailure()
		assert.True(t, b.allow(), "circuit must stay closed below the threshold")
	}
	b.recordFailure()

	assert.Equal(t, breakerOpen, b.currentState())
	assert.False(t, b.allow())
}

func TestBreakerHalfOpensAfterRecoveryWindow(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute, 3)

	b.recordFailure()
	b.recordFailure()
	require.False(t, b.allow())

	*now = now.Add(59 * time.Second)
	assert.False(t, b.allow(), "recovery window has not elapsed yet")

	*now = now.Add(time.Second)
	assert.True(t, b.allow())
	assert.Equal(t, breakerHalfOpen, b.currentState())
}

func TestBreakerClosesAfterHalfOpenSuccesses(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute, 3)

	b.recordFailure()
	b.recordFailure()
	*now = now.Add(time.Minute)
	require.True(t, b.allow())

	b.recordSuccess()
	b.recordSuccess()
	assert.Equal(t, breakerHalfOpen, b.currentState(), "two successes are not enough")
	b.recordSuccess()
	assert.Equal(t, breakerClosed, b.currentState())
	assert.True(t, b.allow())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	b, now := newTestBreaker(2, time.Minute, 3)

	b.recordFailure()
	b.recordFailure()
	*now = now.Add(time.Minute)
	require.True(t, b.allow())

	b.recordSuccess()
	b.recordFailure()

	assert.Equal(t, breakerOpen, b.currentState())
	assert.False(t, b.allow())
}

func TestBreakerClosedSuccessesPayDownFailures(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute, 3)

	b.recordFailure()
	b.recordFailure()
	b.recordSuccess()
	b.recordSuccess()

	// The earlier failures are forgotten, so two more do not trip it.
	b.recordFailure()
	b.recordFailure()
	assert.Equal(t, breakerClosed, b.currentState())
}

func TestClientFailsFastWhenCircuitOpen(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewCRMClient(Config{
		BaseURL:          server.URL,
		MaxRetries:       0,
		Backoff:          time.Millisecond,
		BreakerThreshold: 2,
		BreakerRecovery:  time.Hour,
	})

	_, err := client.CustomerByID(context.Background(), "CUST001")
	require.Error(t, err)
	_, err = client.CustomerByID(context.Background(), "CUST001")
	require.Error(t, err)
	require.Equal(t, int64(2), hits.Load())

	_, err = client.CustomerByID(context.Background(), "CUST001")
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int64(2), hits.Load(), "open circuit must not reach the server")
}

func TestClientNotFoundDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewCRMClient(Config{
		BaseURL:          server.URL,
		MaxRetries:       0,
		BreakerThreshold: 2,
		BreakerRecovery:  time.Hour,
	})

	for i := 0; i < 5; i++ {
		_, err := client.CustomerByID(context.Background(), "CUST999")
		require.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, breakerClosed, client.rc.breaker.currentState())
}

func TestClientRecoversAfterRecoveryWindow(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"CUST001","name":"Rajesh Kumar"}`))
	}))
	defer server.Close()

	client := NewCRMClient(Config{
		BaseURL:          server.URL,
		MaxRetries:       0,
		BreakerThreshold: 1,
		BreakerRecovery:  time.Hour,
		BreakerHalfOpen:  1,
	})

	_, err := client.CustomerByID(context.Background(), "CUST001")
	require.Error(t, err)
	require.Equal(t, breakerOpen, client.rc.breaker.currentState())

	// Force the recovery window to elapse and let the upstream heal.
	client.rc.breaker.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	failing.Store(false)

	profile, err := client.CustomerByID(context.Background(), "CUST001")
	require.NoError(t, err)
	assert.Equal(t, "Rajesh Kumar", profile.Name)
	assert.Equal(t, breakerClosed, client.rc.breaker.currentState())
}
