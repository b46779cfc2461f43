package fetch

import (
	"context"
	"testing"
	"time"
)

func TestHostLimiterThrottlesSameHost(t *testing.T) {
	t.Parallel()

	// 10 rps means one token every 100ms after the initial burst.
	l := newHostLimiter(10, 1)
	ctx := context.Background()

	if err := l.wait(ctx, "http://parliament.test/page/1"); err != nil {
		t.Fatalf("wait() error = %v", err)
	}

	start := time.Now()
	if err := l.wait(ctx, "http://parliament.test/page/2"); err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if d := time.Since(start); d < 80*time.Millisecond {
		t.Errorf("expected ~100ms wait, got %v", d)
	}
}

func TestHostLimiterIsPerHost(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(1, 1)
	ctx := context.Background()

	if err := l.wait(ctx, "http://a.test/1"); err != nil {
		t.Fatalf("wait() error = %v", err)
	}

	// A different host has its own bucket and is not blocked.
	start := time.Now()
	if err := l.wait(ctx, "http://b.test/1"); err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if d := time.Since(start); d > 50*time.Millisecond {
		t.Errorf("second host blocked unexpectedly for %v", d)
	}
}

func TestHostLimiterZeroRateIsUnthrottled(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.wait(ctx, "http://a.test/x"); err != nil {
			t.Fatalf("wait() error = %v", err)
		}
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Errorf("unthrottled limiter waited %v", d)
	}
}

func TestHostLimiterHonorsContext(t *testing.T) {
	t.Parallel()

	l := newHostLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := l.wait(ctx, "http://a.test/1"); err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	cancel()
	if err := l.wait(ctx, "http://a.test/2"); err == nil {
		t.Fatal("expected error after cancellation")
	}
}
