package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/novakeep/herald/internal/resilience"
)

var errProvider = errors.New("provider unavailable")

func failingCall() error { return errProvider }
func okCall() error      { return nil }

// openBreaker trips a fresh breaker with maxFailures consecutive failures.
func openBreaker(t *testing.T, cfg resilience.CircuitBreakerConfig) *resilience.CircuitBreaker {
	t.Helper()
	cb := resilience.NewCircuitBreaker(cfg)
	max := cfg.MaxFailures
	if max <= 0 {
		max = 5
	}
	for range max {
		if err := cb.Execute(failingCall); !errors.Is(err, errProvider) {
			t.Fatalf("Execute() = %v, want provider error while closed", err)
		}
	}
	if got := cb.State(); got != resilience.StateOpen {
		t.Fatalf("State() = %v after %d failures, want open", got, max)
	}
	return cb
}

func TestCircuitBreakerForwardsWhileClosed(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "stt"})

	calls := 0
	for range 10 {
		if err := cb.Execute(func() error { calls++; return nil }); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
	}
	if calls != 10 {
		t.Errorf("calls = %d, want 10", calls)
	}
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestCircuitBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 3})

	_ = cb.Execute(failingCall)
	_ = cb.Execute(failingCall)
	_ = cb.Execute(okCall)
	_ = cb.Execute(failingCall)
	_ = cb.Execute(failingCall)

	// Never 3 in a row, so the breaker stays closed.
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() = %v, want closed", got)
	}
}

func TestCircuitBreakerOpensAndRejects(t *testing.T) {
	cb := openBreaker(t, resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("Execute() = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn was called through an open breaker")
	}
}

func TestCircuitBreakerProbesAfterResetTimeout(t *testing.T) {
	cb := openBreaker(t, resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	time.Sleep(20 * time.Millisecond)
	if got := cb.State(); got != resilience.StateHalfOpen {
		t.Fatalf("State() = %v after reset timeout, want half-open", got)
	}

	// Enough successful probes close the breaker.
	for range 2 {
		if err := cb.Execute(okCall); err != nil {
			t.Fatalf("probe Execute() error = %v", err)
		}
	}
	if got := cb.State(); got != resilience.StateClosed {
		t.Errorf("State() = %v after successful probes, want closed", got)
	}
}

func TestCircuitBreakerFailedProbeReopens(t *testing.T) {
	cb := openBreaker(t, resilience.CircuitBreakerConfig{
		MaxFailures:  2,
		ResetTimeout: 10 * time.Millisecond,
	})

	time.Sleep(20 * time.Millisecond)
	if err := cb.Execute(failingCall); !errors.Is(err, errProvider) {
		t.Fatalf("probe Execute() = %v, want provider error", err)
	}
	if got := cb.State(); got != resilience.StateOpen {
		t.Errorf("State() = %v after failed probe, want open", got)
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := openBreaker(t, resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})

	cb.Reset()
	if got := cb.State(); got != resilience.StateClosed {
		t.Fatalf("State() = %v after Reset, want closed", got)
	}
	if err := cb.Execute(okCall); err != nil {
		t.Errorf("Execute() error = %v after Reset", err)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
		{resilience.State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
