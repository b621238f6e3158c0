package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/novakeep/herald/internal/resilience"
)

func TestFallbackGroupPrimaryWins(t *testing.T) {
	g := resilience.NewFallbackGroup("primary", "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", "backup")

	var used string
	err := g.Execute(func(v string) error {
		used = v
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if used != "primary" {
		t.Errorf("used = %q, want primary", used)
	}
}

func TestFallbackGroupFailsOver(t *testing.T) {
	g := resilience.NewFallbackGroup("primary", "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", "backup")

	var tried []string
	err := g.Execute(func(v string) error {
		tried = append(tried, v)
		if v == "primary" {
			return errProvider
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(tried) != 2 || tried[1] != "backup" {
		t.Errorf("tried = %v, want [primary backup]", tried)
	}
}

func TestFallbackGroupAllFail(t *testing.T) {
	g := resilience.NewFallbackGroup("primary", "primary", resilience.FallbackConfig{})
	g.AddFallback("backup", "backup")

	err := g.Execute(func(string) error { return errProvider })
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("Execute() = %v, want ErrAllFailed", err)
	}
}

func TestFallbackGroupSkipsOpenBreaker(t *testing.T) {
	cfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  1,
			ResetTimeout: time.Hour,
		},
	}
	g := resilience.NewFallbackGroup("primary", "primary", cfg)
	g.AddFallback("backup", "backup")

	// Trip the primary's breaker.
	_ = g.Execute(func(v string) error {
		if v == "primary" {
			return errProvider
		}
		return nil
	})

	var tried []string
	err := g.Execute(func(v string) error {
		tried = append(tried, v)
		return nil
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(tried) != 1 || tried[0] != "backup" {
		t.Errorf("tried = %v, want only backup while primary's circuit is open", tried)
	}
}

func TestExecuteWithResultFailsOver(t *testing.T) {
	g := resilience.NewFallbackGroup(1, "one", resilience.FallbackConfig{})
	g.AddFallback("two", 2)

	got, err := resilience.ExecuteWithResult(g, func(v int) (string, error) {
		if v == 1 {
			return "", errProvider
		}
		return "two spoke", nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult() error = %v", err)
	}
	if got != "two spoke" {
		t.Errorf("result = %q, want %q", got, "two spoke")
	}
}

func TestExecuteWithResultAllFail(t *testing.T) {
	g := resilience.NewFallbackGroup(1, "one", resilience.FallbackConfig{})

	got, err := resilience.ExecuteWithResult(g, func(int) (string, error) {
		return "", errProvider
	})
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("ExecuteWithResult() = %v, want ErrAllFailed", err)
	}
	if got != "" {
		t.Errorf("result = %q, want zero value", got)
	}
}
