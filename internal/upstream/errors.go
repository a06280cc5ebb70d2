package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNotFound is returned when the upstream definitively has no record for
// the requested entity. It is terminal: callers must not retry it.
var ErrNotFound = errors.New("upstream: entity not found")

// ErrCircuitOpen is returned without contacting the upstream while its
// circuit breaker is open. The breaker admits a trial call once the
// recovery window elapses, so the condition is transient.
var ErrCircuitOpen = errors.New("upstream: circuit open")

// IsNotFound reports whether err means the entity genuinely does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// apiError carries a non-2xx upstream response.
type apiError struct {
	Service    string `json:"-"`
	StatusCode int    `json:"-"`
	Message    string `json:"message,omitempty"`
	Detail     string `json:"error,omitempty"`
}

func (e *apiError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Detail
	}
	if msg != "" {
		return fmt.Sprintf("upstream %s: %s (status=%d)", e.Service, msg, e.StatusCode)
	}
	return fmt.Sprintf("upstream %s: http status %d", e.Service, e.StatusCode)
}

func decodeAPIError(service string, status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{Service: service, StatusCode: status, Detail: string(body)}
	}
	parsed.Service = service
	parsed.StatusCode = status
	return &parsed
}

// shouldRetry classifies a failure as transient. Timeouts, transport errors
// (other than cancellation), 408/429 and 5xx retry; everything else is
// terminal.
func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	switch {
	case status == http.StatusRequestTimeout:
		return true
	case status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status <= 599:
		return true
	}
	return false
}

// IsTransient reports whether err would have been retried had budget
// remained. Useful for mapping exhausted retries to a "try again" reply.
func IsTransient(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return shouldRetry(ae.StatusCode, nil)
	}
	if errors.Is(err, ErrCircuitOpen) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
