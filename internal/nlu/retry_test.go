package nlu

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	if got := CalculateBackoff(0, time.Second, time.Minute); got != 0 {
		t.Errorf("attempt 0 backoff = %v, want 0", got)
	}
	for attempt := 1; attempt <= 6; attempt++ {
		got := CalculateBackoff(attempt, 100*time.Millisecond, 500*time.Millisecond)
		if got < 0 || got > 500*time.Millisecond {
			t.Errorf("attempt %d backoff = %v, want within [0, 500ms]", attempt, got)
		}
	}
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("succeeds after transient errors", func(t *testing.T) {
		t.Parallel()
		calls, retries := 0, 0
		err := WithRetry(context.Background(), cfg, func(int, error) { retries++ }, func() error {
			calls++
			if calls < 3 {
				return errors.New("503 unavailable")
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithRetry() error = %v", err)
		}
		if calls != 3 || retries != 2 {
			t.Errorf("calls = %d, retries = %d; want 3, 2", calls, retries)
		}
	})

	t.Run("permanent error stops", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(context.Background(), cfg, nil, func() error {
			calls++
			return WrapError(errors.New("bad key"), ProviderGroq, 401)
		})
		if err == nil || calls != 1 {
			t.Errorf("err = %v, calls = %d; want error after 1 call", err, calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := WithRetry(context.Background(), cfg, nil, func() error {
			calls++
			return errors.New("timeout")
		})
		if err == nil || calls != 3 {
			t.Errorf("err = %v, calls = %d; want error after 3 calls", err, calls)
		}
	})

	t.Run("zero attempts runs once", func(t *testing.T) {
		t.Parallel()
		calls := 0
		_ = WithRetry(context.Background(), RetryConfig{}, nil, func() error {
			calls++
			return errors.New("timeout")
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestSleep_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep() = %v, want context.Canceled", err)
	}
}

func TestHasSufficientBudget(t *testing.T) {
	t.Parallel()

	if !HasSufficientBudget(context.Background(), time.Hour) {
		t.Error("no deadline should mean unlimited budget")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if HasSufficientBudget(ctx, time.Second) {
		t.Error("10ms deadline should not cover 1s")
	}
}
