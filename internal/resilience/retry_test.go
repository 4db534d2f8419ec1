package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func quickRetry(n int) RetryConfig {
	return RetryConfig{MaxRetries: n, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

func TestRetry(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "model loading")
	invalid := status.Error(codes.InvalidArgument, "image too small")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"first attempt", 0, nil, 1, nil},
		{"recovers", 2, unavailable, 3, nil},
		{"exhausted", 10, unavailable, 4, unavailable},
		{"not retryable", 10, invalid, 1, invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), quickRetry(3), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Retry() = %v, want %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestRetryOnRetryHook(t *testing.T) {
	cfg := quickRetry(2)
	var delays []time.Duration
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		if attempt != len(delays)+1 || err == nil {
			t.Errorf("OnRetry(%d, %v, %v)", attempt, delay, err)
		}
		delays = append(delays, delay)
	}

	_ = Retry(context.Background(), cfg, func(context.Context) error {
		return status.Error(codes.DeadlineExceeded, "slow")
	})
	if len(delays) != 2 {
		t.Fatalf("OnRetry called %d times, want 2", len(delays))
	}
	if delays[1] < delays[0] {
		t.Errorf("delays = %v, want non-decreasing", delays)
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxRetries: 10, BaseDelay: time.Hour, MaxDelay: time.Hour}
	calls := 0

	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		cancel()
		return status.Error(codes.Unavailable, "down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRetryableGRPC(t *testing.T) {
	for code, want := range map[codes.Code]bool{
		codes.Unavailable:       true,
		codes.DeadlineExceeded:  true,
		codes.ResourceExhausted: true,
		codes.Aborted:           true,
		codes.Internal:          false,
		codes.InvalidArgument:   false,
		codes.NotFound:          false,
	} {
		if got := IsRetryableGRPC(status.Error(code, "x")); got != want {
			t.Errorf("IsRetryableGRPC(%v) = %v, want %v", code, got, want)
		}
	}
	if IsRetryableGRPC(nil) {
		t.Error("nil error is not retryable")
	}
	if !IsRetryableGRPC(errors.New("connection reset")) {
		t.Error("errors without a status should be retried")
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond}
	for attempt, want := range []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond} {
		if got := backoffDelay(cfg, attempt); got != want {
			t.Errorf("backoffDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestBackoffDelayJitterBounds(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Second, MaxDelay: time.Second, JitterFactor: 0.2}
	for i := 0; i < 50; i++ {
		d := backoffDelay(cfg, 0)
		if d < 900*time.Millisecond || d > 1100*time.Millisecond {
			t.Fatalf("backoffDelay() = %v, outside ±10%%", d)
		}
	}
}
