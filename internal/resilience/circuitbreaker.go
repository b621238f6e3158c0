// Package resilience keeps the speech pipeline talking when a provider
// degrades. A [CircuitBreaker] stops hammering an endpoint that keeps
// failing; a [FallbackGroup] routes around it to the next configured
// provider. The typed STT/TTS/LLM cascades in this package wrap the herald
// provider interfaces around a shared generic core.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and its reset timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through; their
	// outcome decides between closing and re-opening.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values fall back to
// the defaults noted per field.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output, typically the provider name.
	Name string

	// MaxFailures is how many consecutive failures open the breaker. Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before probing. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds the number of probe calls in half-open. Default 3.
	HalfOpenMax int
}

// CircuitBreaker is a three-state breaker (closed, open, half-open).
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu         sync.Mutex
	state      State
	failures   int // consecutive failures while closed
	lastFail   time.Time
	probes     int // calls attempted in half-open
	probeFails int
}

// NewCircuitBreaker creates a breaker, substituting defaults for zero-value
// config fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
	}
}

// Execute runs fn when the breaker permits it. Open with the reset timeout
// still pending returns [ErrCircuitOpen] without calling fn; half-open
// admits fn only while the probe budget lasts.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFail) < cb.resetTimeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker probing", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.halfOpenMax {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure(probing)
	} else {
		cb.onSuccess(probing)
	}
	return err
}

// onFailure updates failure accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onFailure(probing bool) {
	cb.lastFail = time.Now()

	if probing {
		// One failed probe re-opens immediately.
		cb.probeFails++
		cb.state = StateOpen
		cb.failures = cb.maxFailures
		slog.Warn("circuit breaker re-opened", "name", cb.name)
		return
	}

	cb.failures++
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name, "consecutive_failures", cb.failures)
	}
}

// onSuccess updates success accounting. Caller holds cb.mu.
func (cb *CircuitBreaker) onSuccess(probing bool) {
	if !probing {
		cb.failures = 0
		return
	}
	if cb.probes-cb.probeFails >= cb.halfOpenMax {
		cb.state = StateClosed
		cb.failures = 0
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker closed", "name", cb.name)
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the stored transition happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.lastFail) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker reset", "name", cb.name)
}
