package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLimiterRefill(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New()
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.Allow("candles", 2, 1) {
			t.Fatalf("token %d denied", i)
		}
	}
	if l.Allow("candles", 2, 1) {
		t.Fatalf("bucket should be empty")
	}
	if !l.Allow("assets", 2, 1) {
		t.Fatalf("keys must not share a bucket")
	}

	now = now.Add(time.Second)
	if !l.Allow("candles", 2, 1) {
		t.Fatalf("token not refilled after 1s")
	}
	if l.Allow("candles", 2, 1) {
		t.Fatalf("refill overshot")
	}
}

func TestLimiterWaitHonoursContext(t *testing.T) {
	l := New()
	if !l.Allow("k", 1, 0.001) {
		t.Fatalf("first token denied")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx, "k", 1, 0.001); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}
