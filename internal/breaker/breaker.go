// Package breaker implements a fixed-window circuit breaker for external
// dependencies. One Breaker instance wraps exactly one dependency and is
// safe for concurrent use.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State enumerates breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrUnavailable is returned when the breaker refuses a call without
// invoking the wrapped operation. Callers can apply a different retry
// policy than for failures of the operation itself.
var ErrUnavailable = errors.New("service temporarily unavailable")

// Operation is any external call guarded by the breaker.
type Operation func(ctx context.Context) error

// Config tunes trip and recovery behavior.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
	// OnStateChange is invoked after a transition, outside the lock.
	OnStateChange func(from, to State)
}

// Breaker guards one external dependency. Failure counting and state
// transitions are serialized under a single mutex; the wrapped operation
// itself runs without holding the lock.
type Breaker struct {
	mu            sync.Mutex
	state         State
	failures      int
	lastFailure   time.Time
	trialInFlight bool

	threshold     int
	recovery      time.Duration
	now           func() time.Time
	onStateChange func(from, to State)
}

// New builds a closed breaker. Threshold defaults to 3 and recovery
// timeout to 60s, matching the documented policy.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		state:         StateClosed,
		threshold:     cfg.FailureThreshold,
		recovery:      cfg.RecoveryTimeout,
		now:           cfg.Now,
		onStateChange: cfg.OnStateChange,
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call executes op unless the breaker is open inside its cool-down window,
// in which case it fails fast with ErrUnavailable. After the window
// elapses the breaker moves to half-open and admits exactly one trial
// call; a success there closes it, a failure re-opens it. The operation's
// own error is always returned to the caller regardless of any state
// transition it caused.
func (b *Breaker) Call(ctx context.Context, op Operation) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := op(ctx)

	b.settle(err)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) <= b.recovery {
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = true
	case StateHalfOpen:
		if b.trialInFlight {
			// one trial at a time
			b.mu.Unlock()
			return ErrUnavailable
		}
		b.trialInFlight = true
	}

	b.mu.Unlock()
	return nil
}

func (b *Breaker) settle(err error) {
	b.mu.Lock()
	b.trialInFlight = false

	if err == nil {
		if b.state != StateClosed {
			b.transition(StateClosed)
		}
		b.failures = 0
		b.mu.Unlock()
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		if b.state != StateOpen {
			b.transition(StateOpen)
		}
		b.lastFailure = b.now()
	}
	b.mu.Unlock()
}

// transition requires b.mu held. The callback runs in its own goroutine
// so listeners cannot re-enter the lock.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		go b.onStateChange(from, to)
	}
}
