package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/Adithyanmurthy/Loan-Chatbot/internal/observability/metrics"
	"github.com/Adithyanmurthy/Loan-Chatbot/pkg/logging"
)

const defaultUserAgent = "loan-chatbot-upstream/0.1"

// Config controls how an upstream client behaves. The breaker fields default
// to 5 failures to open, a 60s recovery window, and 3 half-open successes to
// close.
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	Backoff      time.Duration
	BackoffCap   time.Duration
	MaxTotalWait time.Duration

	BreakerThreshold int
	BreakerRecovery  time.Duration
	BreakerHalfOpen  int

	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.UpstreamMetrics
	Tracer     trace.Tracer
}

// restClient implements the shared GET-with-retry mechanics for all three
// upstream services.
type restClient struct {
	service      string
	baseURL      string
	httpClient   *http.Client
	maxRetries   int
	backoff      time.Duration
	backoffCap   time.Duration
	maxTotalWait time.Duration
	breaker      *breaker
	logger       *logging.Logger
	metrics      *metrics.UpstreamMetrics
	tracer       trace.Tracer
}

func newRESTClient(service string, cfg Config) *restClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("loanchat.internal.upstream")
	}
	return &restClient{
		service:      service,
		baseURL:      baseURL,
		httpClient:   httpClient,
		maxRetries:   maxRetries,
		backoff:      backoff,
		backoffCap:   backoffCap,
		maxTotalWait: cfg.MaxTotalWait,
		breaker:      newBreaker(cfg.BreakerThreshold, cfg.BreakerRecovery, cfg.BreakerHalfOpen),
		logger:       logger.Component("upstream." + service),
		metrics:      cfg.Metrics,
		tracer:       tracer,
	}
}

// getJSON issues a GET with bounded retries and decodes the 2xx body into
// out. Every call returns a definite success or a definite failure; there
// is no unbounded retry path.
func (c *restClient) getJSON(ctx context.Context, path string, out any) error {
	if !c.breaker.allow() {
		c.logger.Warn("circuit open, failing fast", "service", c.service)
		return fmt.Errorf("upstream %s: %w", c.service, ErrCircuitOpen)
	}

	start := time.Now()
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("upstream %s: build request: %w", c.service, err)
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.breaker.recordFailure()
			if !shouldRetry(0, err) || attempt == c.maxRetries {
				return fmt.Errorf("upstream %s: http error: %w", c.service, err)
			}
			lastErr = err
			if stop := c.pause(ctx, start, attempt, 0, err); stop != nil {
				return stop
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			c.breaker.recordFailure()
			return fmt.Errorf("upstream %s: read response: %w", c.service, readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.Unmarshal(data, out); err != nil {
				c.breaker.recordFailure()
				return fmt.Errorf("upstream %s: decode response: %w", c.service, err)
			}
			c.breaker.recordSuccess()
			return nil
		}

		// 404 and other terminal 4xx are authoritative answers from a healthy
		// service; only transient statuses count against the breaker.
		if resp.StatusCode == http.StatusNotFound {
			c.breaker.recordSuccess()
			return fmt.Errorf("upstream %s: %w", c.service, ErrNotFound)
		}

		apiErr := decodeAPIError(c.service, resp.StatusCode, data)
		if !shouldRetry(resp.StatusCode, nil) {
			c.breaker.recordSuccess()
			return apiErr
		}
		c.breaker.recordFailure()
		if attempt < c.maxRetries {
			lastErr = apiErr
			if stop := c.pause(ctx, start, attempt, resp.StatusCode, apiErr); stop != nil {
				return stop
			}
			continue
		}
		return apiErr
	}

	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("upstream %s: request failed without response", c.service)
}

// errWaitBudget signals that the total-wait budget ran out mid-policy.
var errWaitBudget = errors.New("retry wait budget exhausted")

// pause sleeps before the next attempt. It returns the last error when the
// total-wait budget would be exceeded, and the context error when cancelled.
func (c *restClient) pause(ctx context.Context, start time.Time, attempt, status int, cause error) error {
	c.metrics.ObserveRetry(c.service)
	c.logger.Warn("upstream retry",
		"service", c.service,
		"attempt", attempt+1,
		"status", status,
		"error", cause,
	)

	delay := c.nextDelay(attempt)
	if c.maxTotalWait > 0 && time.Since(start)+delay > c.maxTotalWait {
		return fmt.Errorf("upstream %s: %w after %d attempts: %w", c.service, errWaitBudget, attempt+1, cause)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextDelay grows exponentially from the base, caps, and applies equal
// jitter so concurrent sessions do not retry in lockstep.
func (c *restClient) nextDelay(attempt int) time.Duration {
	delay := c.backoff * time.Duration(1<<attempt)
	if delay > c.backoffCap {
		delay = c.backoffCap
	}
	half := delay / 2
	if half > 0 {
		delay = half + time.Duration(rand.Int63n(int64(half)))
	}
	return delay
}

func (c *restClient) observe(result string, start time.Time) {
	c.metrics.ObserveRequest(c.service, result, time.Since(start).Seconds())
}

// CRMClient looks up customer profiles.
type CRMClient struct {
	rc *restClient
}

func NewCRMClient(cfg Config) *CRMClient {
	return &CRMClient{rc: newRESTClient("crm", cfg)}
}

func (c *CRMClient) CustomerByID(ctx context.Context, id string) (*Profile, error) {
	ctx, span := c.rc.tracer.Start(ctx, "upstream.customer_lookup")
	defer span.End()
	start := time.Now()

	var profile Profile
	if err := c.rc.getJSON(ctx, "/customers/"+url.PathEscape(id), &profile); err != nil {
		span.RecordError(err)
		if IsNotFound(err) {
			c.rc.observe("not_found", start)
		} else {
			c.rc.observe("error", start)
		}
		return nil, err
	}
	c.rc.observe("ok", start)
	return &profile, nil
}

// BureauClient looks up credit scores.
type BureauClient struct {
	rc *restClient
}

func NewBureauClient(cfg Config) *BureauClient {
	return &BureauClient{rc: newRESTClient("credit_bureau", cfg)}
}

func (c *BureauClient) CreditScoreByID(ctx context.Context, id string) (*CreditReport, error) {
	ctx, span := c.rc.tracer.Start(ctx, "upstream.credit_score_lookup")
	defer span.End()
	start := time.Now()

	var report CreditReport
	if err := c.rc.getJSON(ctx, "/credit-score/"+url.PathEscape(id), &report); err != nil {
		span.RecordError(err)
		if IsNotFound(err) {
			c.rc.observe("not_found", start)
		} else {
			c.rc.observe("error", start)
		}
		return nil, err
	}
	c.rc.observe("ok", start)
	return &report, nil
}

// OfferClient looks up pre-approved offers. A missing record is not a
// failure: the conservative default offer applies.
type OfferClient struct {
	rc *restClient
}

func NewOfferClient(cfg Config) *OfferClient {
	return &OfferClient{rc: newRESTClient("offer_mart", cfg)}
}

func (c *OfferClient) OfferByID(ctx context.Context, id string) (*Offer, error) {
	ctx, span := c.rc.tracer.Start(ctx, "upstream.offer_lookup")
	defer span.End()
	start := time.Now()

	var offer Offer
	if err := c.rc.getJSON(ctx, "/offers/"+url.PathEscape(id), &offer); err != nil {
		if IsNotFound(err) {
			c.rc.logger.Info("no offer on file, using standard terms", "customer_id", id)
			c.rc.observe("fallback", start)
			return DefaultOffer(id), nil
		}
		span.RecordError(err)
		c.rc.observe("error", start)
		return nil, err
	}
	c.rc.observe("ok", start)
	return &offer, nil
}
