package errors

import (
	"errors"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid break interval").
			WithSeverity(SeverityFatal).
			WithContext("file", "breaktimed.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid break interval" {
			t.Errorf("expected message 'invalid break interval', got %s", err.Message())
		}

		file, exists := err.Context().Get("file")
		if !exists || file != "breaktimed.yaml" {
			t.Errorf("expected context file=breaktimed.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := LockError("lock surface denied").Build()

		if !HasCategory(err, CategoryLock) {
			t.Error("expected error to have lock category")
		}
		if !err.CanRetry() {
			t.Error("expected lock error to be retryable")
		}
		if err.IsFatal() {
			t.Error("lock errors must never be fatal to the daemon")
		}
		if !err.IsTransient() {
			t.Error("expected lock error to be transient")
		}
	})

	t.Run("Notify errors stay warnings", func(t *testing.T) {
		err := NotifyError("notification daemon unreachable").Build()
		if err.Severity() != SeverityWarning {
			t.Errorf("expected warning severity, got %s", err.Severity())
		}
		if err.CanRetry() {
			t.Error("notify errors are fire-and-forget, not retried")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("connection reset")
		err := WrapError(originalErr, CategoryCompositor, "compositor disconnected").
			Warning().
			Retryable().
			WithContext("locker", "swaylock").
			Build()

		if err.Category() != CategoryCompositor {
			t.Errorf("expected category %s, got %s", CategoryCompositor, err.Category())
		}
		if err.Severity() != SeverityWarning {
			t.Errorf("expected severity %s, got %s", SeverityWarning, err.Severity())
		}
		if !errors.Is(err, err) {
			t.Error("classified error should match itself via errors.Is")
		}
		if errors.Unwrap(err) != originalErr {
			t.Error("expected Unwrap to return the wrapped cause")
		}
	})

	t.Run("WithContext returns copy", func(t *testing.T) {
		base := ActivationError("channel closed").Build()
		derived := base.WithContext("socket", "/run/breaktimed.sock")
		if _, exists := base.Context().Get("socket"); exists {
			t.Error("WithContext must not mutate the original error")
		}
		if v, _ := derived.Context().Get("socket"); v != "/run/breaktimed.sock" {
			t.Errorf("expected derived context value, got %v", v)
		}
	})
}

func TestCategoryHelpers(t *testing.T) {
	plain := errors.New("plain")
	if GetCategory(plain) != CategoryInternal {
		t.Error("unclassified errors default to internal category")
	}
	if GetRetryStrategy(plain) != RetryNever {
		t.Error("unclassified errors default to RetryNever")
	}

	classified := StoreError("write failed").Build()
	if GetCategory(classified) != CategoryStore {
		t.Errorf("expected store category, got %s", GetCategory(classified))
	}
}
