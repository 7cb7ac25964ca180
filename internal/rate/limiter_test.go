package rate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestLimiter(t *testing.T, rps, burst int) (*Limiter, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client, zap.NewNop(), rps, burst), client
}

func TestAllowConsumesBurst(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		allowed, _, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow #%d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request %d denied inside burst", i+1)
		}
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if allowed {
		t.Fatal("request allowed after burst exhausted")
	}
	if retryAfter <= 0 || retryAfter > time.Second {
		t.Errorf("retry after = %s, want within one second", retryAfter)
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1, 1)

	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("first key denied")
	}
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.2"); !allowed {
		t.Fatal("second key throttled by first key's bucket")
	}
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); allowed {
		t.Fatal("first key not throttled")
	}
}

func TestAllowRefillsOverTime(t *testing.T) {
	ctx := context.Background()
	limiter, client := newTestLimiter(t, 5, 10)

	// empty bucket last refilled three seconds ago
	stale := fmt.Sprintf("0:%d", time.Now().Add(-3*time.Second).Unix())
	if err := client.Set(ctx, "rate:10.0.0.1", stale, time.Minute).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	allowed, _, err := limiter.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if !allowed {
		t.Fatal("bucket did not refill from elapsed time")
	}
}

func TestResetClearsBucket(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1, 1)

	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("first request denied")
	}
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); allowed {
		t.Fatal("bucket not exhausted")
	}
	if err := limiter.Reset(ctx, "10.0.0.1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if allowed, _, _ := limiter.Allow(ctx, "10.0.0.1"); !allowed {
		t.Fatal("bucket not cleared by reset")
	}
}
