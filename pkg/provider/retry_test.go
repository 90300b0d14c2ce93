package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func serverClass(error) ErrorClass { return ErrorClassServer }
func clientClass(error) ErrorClass { return ErrorClassClient }

func TestNoRetry_SingleAttempt(t *testing.T) {
	calls := 0
	err := NoRetry{}.Execute(context.Background(), func() error {
		calls++
		return errors.New("boom")
	}, serverClass)

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Calls = %d, want exactly 1", calls)
	}
}

func TestBackoff_RetriesUntilSuccess(t *testing.T) {
	policy := Backoff{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}

	calls := 0
	err := policy.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, serverClass)

	if err != nil {
		t.Errorf("Execute() error = %v, want nil after retry", err)
	}
	if calls != 3 {
		t.Errorf("Calls = %d, want 3", calls)
	}
}

func TestBackoff_DoesNotRetryClientErrors(t *testing.T) {
	policy := DefaultBackoff()

	calls := 0
	start := time.Now()
	err := policy.Execute(context.Background(), func() error {
		calls++
		return &Error{StatusCode: 404, Class: ErrorClassClient, Message: "404 Not Found"}
	}, clientClass)

	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Calls = %d, want 1 (client errors are not retried)", calls)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Client error should fail fast without backoff")
	}
}

func TestBackoff_Exhaustion(t *testing.T) {
	policy := Backoff{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}

	calls := 0
	err := policy.Execute(context.Background(), func() error {
		calls++
		return errors.New("still down")
	}, serverClass)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Execute() error = %v, want ErrRetryExhausted", err)
	}
	if calls != 3 {
		t.Errorf("Calls = %d, want 3", calls)
	}
}

func TestBackoff_ContextCancellationDuringBackoff(t *testing.T) {
	policy := Backoff{
		MaxAttempts:    5,
		InitialBackoff: 10 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := policy.Execute(ctx, func() error {
		return errors.New("down")
	}, serverClass)

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Execute() error = %v, want ErrContextCancelled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Cancellation did not interrupt the backoff sleep")
	}
}
