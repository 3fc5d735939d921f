// Package transport implements the secure channel, connection pool, circuit
// breaker and retry policy agentweave uses to call peer agents.
package transport

import (
	"sync"
	"time"
)

// CircuitState is one of the three states a CircuitBreaker can be in
// (spec.md §3 "Circuit State").
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a CircuitBreaker. Grounded in
// original_source/agentweave/authz/opa.py's CircuitBreaker dataclass.
type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	RecoveryTimeout  time.Duration
}

// DefaultCircuitBreakerConfig matches the original implementation's defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RecoveryTimeout:  30 * time.Second,
	}
}

// CircuitBreaker protects a call to a flaky dependency (the policy engine,
// a peer endpoint) by tripping open after FailureThreshold consecutive
// failures, refusing calls until RecoveryTimeout elapses, then allowing a
// trial run in the half-open state before fully closing again.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu             sync.Mutex
	state          CircuitState
	failureCount   int
	successCount   int
	lastFailureAt  time.Time
}

// NewCircuitBreaker constructs a closed CircuitBreaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, state: CircuitClosed}
}

// ErrCircuitOpen is returned by Call when the breaker refuses to invoke fn.
type ErrCircuitOpen struct{}

func (ErrCircuitOpen) Error() string { return "circuit breaker is open" }

// Call invokes fn if the breaker's state permits it, and records the outcome.
// When the breaker is open and RecoveryTimeout has not yet elapsed, fn is
// never invoked and ErrCircuitOpen is returned.
func (b *CircuitBreaker) Call(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen{}
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailureLocked()
	} else {
		b.onSuccessLocked()
	}
	return err
}

func (b *CircuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(b.lastFailureAt) >= b.cfg.RecoveryTimeout {
			b.state = CircuitHalfOpen
			b.successCount = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return true
	default:
		return true
	}
}

func (b *CircuitBreaker) onSuccessLocked() {
	switch b.state {
	case CircuitHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = CircuitClosed
			b.failureCount = 0
			b.successCount = 0
		}
	case CircuitClosed:
		b.failureCount = 0
	}
}

func (b *CircuitBreaker) onFailureLocked() {
	b.lastFailureAt = time.Now()

	switch b.state {
	case CircuitHalfOpen:
		b.state = CircuitOpen
		b.successCount = 0
	case CircuitClosed:
		b.failureCount++
		if b.failureCount >= b.cfg.FailureThreshold {
			b.state = CircuitOpen
		}
	}
}

// State returns the breaker's current state.
func (b *CircuitBreaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// BreakerRegistry hands out one CircuitBreaker per peer target, creating it
// lazily on first use.
type BreakerRegistry struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerRegistry creates a registry whose breakers all share cfg.
func NewBreakerRegistry(cfg CircuitBreakerConfig) *BreakerRegistry {
	return &BreakerRegistry{cfg: cfg, breakers: make(map[string]*CircuitBreaker)}
}

// For returns the breaker for target, creating it if this is the first call for it.
func (r *BreakerRegistry) For(target string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[target]
	if !ok {
		b = NewCircuitBreaker(r.cfg)
		r.breakers[target] = b
	}
	return b
}
