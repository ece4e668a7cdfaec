package amqp

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by publish calls while the broker is considered down.
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker opens after maxFailures consecutive failures and lets one attempt
// through once openTimeout has passed. A failure while half-open opens it again.
type breaker struct {
	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time

	maxFailures int
	openTimeout time.Duration
	now         func() time.Time
}

func newBreaker(maxFailures int, openTimeout time.Duration) *breaker {
	return &breaker{maxFailures: maxFailures, openTimeout: openTimeout, now: time.Now}
}

// allow reports whether a call may proceed.
func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateOpen {
		return true
	}
	if b.now().Sub(b.lastFailure) > b.openTimeout {
		b.state = stateHalfOpen
		return true
	}
	return false
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	if b.failures >= b.maxFailures || b.state == stateHalfOpen {
		b.state = stateOpen
	}
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = stateClosed
}

func (b *breaker) current() breakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
