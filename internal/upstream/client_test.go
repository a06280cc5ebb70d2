package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		Timeout:      2 * time.Second,
		MaxRetries:   3,
		Backoff:      time.Millisecond,
		BackoffCap:   5 * time.Millisecond,
		MaxTotalWait: time.Second,
	}
}

func TestCRMClient_CustomerByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/CUST001", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"CUST001","name":"Rajesh Kumar","phone":"9876543210","monthlySalary":80000}`))
	}))
	defer srv.Close()

	client := NewCRMClient(testConfig(srv.URL))
	profile, err := client.CustomerByID(context.Background(), "CUST001")
	require.NoError(t, err)
	assert.Equal(t, "Rajesh Kumar", profile.Name)
	assert.Equal(t, int64(80_000), profile.MonthlySalary)
}

func TestClient_RetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, `{"error":"temporarily unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"customerId":"CUST001","score":785}`))
	}))
	defer srv.Close()

	client := NewBureauClient(testConfig(srv.URL))
	report, err := client.CreditScoreByID(context.Background(), "CUST001")
	require.NoError(t, err)
	assert.Equal(t, 785, report.Score)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_NotFoundIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewCRMClient(testConfig(srv.URL))
	_, err := client.CustomerByID(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "not found must not retry")
}

func TestClient_BadRequestIsTerminal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"malformed id"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewBureauClient(testConfig(srv.URL))
	_, err := client.CreditScoreByID(context.Background(), "bad id")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RetryBoundOnPersistentFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	client := NewCRMClient(cfg)

	done := make(chan struct{})
	var err error
	go func() {
		_, err = client.CustomerByID(context.Background(), "CUST001")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("retry loop did not terminate")
	}

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, int32(cfg.MaxRetries+1), atomic.LoadInt32(&calls))
}

func TestClient_WaitBudgetStopsEarly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Backoff = 500 * time.Millisecond
	cfg.BackoffCap = 500 * time.Millisecond
	cfg.MaxTotalWait = time.Millisecond

	client := NewCRMClient(cfg)
	_, err := client.CustomerByID(context.Background(), "CUST001")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errWaitBudget))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "budget should stop before a second attempt")
}

func TestClient_ContextCancellation(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	cfg := testConfig(srv.URL)
	cfg.HTTPClient = &http.Client{}
	client := NewBureauClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.CreditScoreByID(ctx, "CUST001")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOfferClient_FallsBackToDefaultOffer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewOfferClient(testConfig(srv.URL))
	offer, err := client.OfferByID(context.Background(), "CUST404")
	require.NoError(t, err)
	assert.Equal(t, DefaultOfferLimit, offer.PreApprovedLimit)
	assert.InDelta(t, DefaultOfferRate, offer.InterestRate, 0.001)
	assert.Equal(t, "CUST404", offer.CustomerID)
}

func TestOfferClient_ReturnsRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"customerId":"CUST001","preApprovedLimit":500000,"interestRate":12.5,"tenureOptions":[36,48,60]}`))
	}))
	defer srv.Close()

	client := NewOfferClient(testConfig(srv.URL))
	offer, err := client.OfferByID(context.Background(), "CUST001")
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), offer.PreApprovedLimit)
	assert.Equal(t, []int{36, 48, 60}, offer.TenureOptions)
}

func TestShouldRetryClassification(t *testing.T) {
	assert.True(t, shouldRetry(http.StatusInternalServerError, nil))
	assert.True(t, shouldRetry(http.StatusBadGateway, nil))
	assert.True(t, shouldRetry(http.StatusServiceUnavailable, nil))
	assert.True(t, shouldRetry(http.StatusTooManyRequests, nil))
	assert.True(t, shouldRetry(http.StatusRequestTimeout, nil))
	assert.False(t, shouldRetry(http.StatusBadRequest, nil))
	assert.False(t, shouldRetry(http.StatusNotFound, nil))
	assert.False(t, shouldRetry(http.StatusOK, nil))
	assert.False(t, shouldRetry(0, context.Canceled))
}
