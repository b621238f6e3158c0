package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [FallbackGroup] failed or
// had an open breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the breaker stamped onto each group member.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// member pairs a provider with its dedicated breaker.
type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup orders a primary and its fallbacks of one provider type.
// Calls walk the members in registration order; a member whose breaker is
// open is skipped without being called.
//
// Members are registered before the group is shared; Execute is safe for
// concurrent use after that.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first member.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	g := &FallbackGroup[T]{cfg: cfg}
	g.add(primaryName, primary)
	return g
}

// AddFallback appends a fallback, tried after all earlier members.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.members = append(fg.members, member[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute runs fn against each member in order until one succeeds. When all
// fail it returns [ErrAllFailed] wrapped around the last error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i := range fg.members {
		m := &fg.members[i]
		err := m.breaker.Execute(func() error {
			return fn(m.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		logMemberFailure(m.name, err)
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value. Package-level because methods cannot add type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.members {
		m := &fg.members[i]
		var result R
		err := m.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(m.value)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		logMemberFailure(m.name, err)
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

func logMemberFailure(name string, err error) {
	if errors.Is(err, ErrCircuitOpen) {
		slog.Debug("skipping provider, circuit open", "provider", name)
		return
	}
	slog.Warn("provider failed, trying next", "provider", name, "error", err)
}
