package upstream

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	}
	return "closed"
}

const (
	defaultBreakerThreshold = 5
	defaultBreakerRecovery  = 60 * time.Second
	defaultBreakerHalfOpen  = 3
)

// breaker is a per-service circuit breaker. Reaching the failure threshold
// opens the circuit and calls fail fast with ErrCircuitOpen. After the
// recovery window one trial call is let through (half-open); the configured number
// of consecutive successes closes the circuit, any failure reopens it.
type breaker struct {
	mu        sync.Mutex
	threshold int
	recovery  time.Duration
	required  int

	state       breakerState
	failures    int
	successes   int
	lastFailure time.Time
	now         func() time.Time
}

func newBreaker(threshold int, recovery time.Duration, required int) *breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if recovery <= 0 {
		recovery = defaultBreakerRecovery
	}
	if required <= 0 {
		required = defaultBreakerHalfOpen
	}
	return &breaker{
		threshold: threshold,
		recovery:  recovery,
		required:  required,
		now:       time.Now,
	}
}

// allow reports whether a call may proceed. An open circuit whose recovery
// window has elapsed moves to half-open and admits the caller as a trial call.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerOpen {
		return true
	}
	if b.now().Sub(b.lastFailure) >= b.recovery {
		b.state = breakerHalfOpen
		b.successes = 0
		return true
	}
	return false
}

// recordSuccess counts half-open trial calls toward closing the circuit. In the
// closed state each success pays down one accumulated failure so a slow
// trickle of errors never opens the circuit.
func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerHalfOpen:
		b.successes++
		if b.successes >= b.required {
			b.state = breakerClosed
			b.failures = 0
			b.successes = 0
		}
	case breakerClosed:
		if b.failures > 0 {
			b.failures--
		}
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.successes = 0
	b.lastFailure = b.now()
	if b.failures >= b.threshold {
		b.state = breakerOpen
	}
}

func (b *breaker) currentState() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
