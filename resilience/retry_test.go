package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Wait(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait = %v, want context.Canceled", err)
	}
}

func TestWaitZeroDelay(t *testing.T) {
	if err := Wait(context.Background(), 0); err != nil {
		t.Errorf("Wait with zero delay = %v, want nil", err)
	}
}

func TestForeverRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	retries := 0

	err := Forever(context.Background(), time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}, func(attempt int, err error) {
		retries++
	})

	if err != nil {
		t.Fatalf("Forever = %v, want nil", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if retries != 2 {
		t.Errorf("onRetry called %d times, want 2", retries)
	}
}

func TestForeverStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	err := Forever(ctx, time.Millisecond, func() error {
		cancel()
		return errors.New("always failing")
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Forever = %v, want context.Canceled", err)
	}
}
