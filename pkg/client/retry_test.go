package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testPolicy(maxRetries int) RetryPolicy {
	p := DefaultRetryPolicy()
	p.MaxRetries = maxRetries
	p.BackoffBase = time.Millisecond
	p.MaxBackoff = 10 * time.Millisecond
	return p
}

func transientErr() error {
	return &RequestError{ErrorClass: ErrorClassServer, StatusCode: 503, transient: true}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	if p.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", p.MaxRetries)
	}
	if p.BackoffBase != 1*time.Second {
		t.Errorf("BackoffBase = %v, want 1s", p.BackoffBase)
	}
	for _, code := range []int{429, 500, 502, 503, 504} {
		if !p.IsRetryableStatus(code) {
			t.Errorf("IsRetryableStatus(%d) = false", code)
		}
	}
	for _, code := range []int{200, 400, 404, 501} {
		if p.IsRetryableStatus(code) {
			t.Errorf("IsRetryableStatus(%d) = true", code)
		}
	}
	for _, m := range []string{"GET", "get", "HEAD", "OPTIONS"} {
		if !p.IsRetryableMethod(m) {
			t.Errorf("IsRetryableMethod(%q) = false", m)
		}
	}
	if p.IsRetryableMethod(http.MethodPost) {
		t.Error("IsRetryableMethod(POST) = true")
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestRetryPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RetryPolicy)
	}{
		{"zero retries", func(p *RetryPolicy) { p.MaxRetries = 0 }},
		{"negative backoff", func(p *RetryPolicy) { p.BackoffBase = -time.Second }},
		{"jitter too large", func(p *RetryPolicy) { p.Jitter = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultRetryPolicy()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := RetryPolicy{BackoffBase: time.Second, MaxBackoff: 5 * time.Second}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	for retry, w := range want {
		if got := p.Backoff(retry); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", retry, got, w)
		}
	}

	uncapped := RetryPolicy{BackoffBase: 100 * time.Millisecond}
	if got := uncapped.Backoff(4); got != 1600*time.Millisecond {
		t.Errorf("uncapped Backoff(4) = %v, want 1.6s", got)
	}
}

func TestRetryPolicy_Jitter(t *testing.T) {
	p := RetryPolicy{Jitter: 0.2}
	for i := 0; i < 50; i++ {
		d := p.jittered(time.Second)
		if d < 800*time.Millisecond || d > 1200*time.Millisecond {
			t.Fatalf("jittered() = %v outside [800ms, 1200ms]", d)
		}
	}
	if got := (RetryPolicy{}).jittered(time.Second); got != time.Second {
		t.Errorf("jittered() without jitter = %v, want 1s", got)
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), testPolicy(3), http.MethodGet, func(int) error {
		calls++
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), testPolicy(3), http.MethodGet, func(attempt int) error {
		calls++
		if attempt != calls {
			t.Errorf("attempt = %d, want %d", attempt, calls)
		}
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), zerolog.Nop(), testPolicy(3), http.MethodGet, func(int) error {
		calls++
		return transientErr()
	})

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("Expected ErrRetryExhausted, got %v", err)
	}
	if calls != 4 {
		t.Errorf("Expected 4 calls (initial + 3 retries), got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentErrorNoRetry(t *testing.T) {
	calls := 0
	permanent := &RequestError{ErrorClass: ErrorClassClient, StatusCode: 404}
	err := retryWithBackoff(context.Background(), zerolog.Nop(), testPolicy(3), http.MethodGet, func(int) error {
		calls++
		return permanent
	})

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("Should not return ErrRetryExhausted when no retry was attempted")
	}
	if !errors.Is(err, permanent) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_NonIdempotentMethodNoRetry(t *testing.T) {
	calls := 0
	_ = retryWithBackoff(context.Background(), zerolog.Nop(), testPolicy(3), http.MethodPost, func(int) error {
		calls++
		return transientErr()
	})

	if calls != 1 {
		t.Errorf("Expected 1 call for POST, got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := testPolicy(3)
	policy.BackoffBase = time.Hour
	policy.MaxBackoff = time.Hour

	calls := 0
	err := retryWithBackoff(ctx, zerolog.Nop(), policy, http.MethodGet, func(int) error {
		calls++
		cancel()
		return transientErr()
	})

	if !errors.Is(err, ErrContextCancelled) {
		t.Errorf("Expected ErrContextCancelled, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	policy := testPolicy(2)
	policy.BackoffBase = 20 * time.Millisecond
	policy.MaxBackoff = 0

	var timestamps []time.Time
	_ = retryWithBackoff(context.Background(), zerolog.Nop(), policy, http.MethodGet, func(int) error {
		timestamps = append(timestamps, time.Now())
		return transientErr()
	})

	if len(timestamps) != 3 {
		t.Fatalf("Expected 3 timestamps, got %d", len(timestamps))
	}

	first := timestamps[1].Sub(timestamps[0])
	second := timestamps[2].Sub(timestamps[1])
	if first < 20*time.Millisecond {
		t.Errorf("First retry delay %v, want >= 20ms", first)
	}
	if second < 40*time.Millisecond {
		t.Errorf("Second retry delay %v, want >= 40ms", second)
	}
}
