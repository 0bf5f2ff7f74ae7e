package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryTTL(time.Minute))
	defer mc.Close()

	if err := mc.Set(ctx, "a", 4.25, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got float64
	if err := mc.Get(ctx, "a", &got); err != nil || got != 4.25 {
		t.Fatalf("get: %v %v", got, err)
	}

	if err := mc.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryTTL(time.Minute))

	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Set(ctx, "b", 2, 0)
	var v int
	_ = mc.Get(ctx, "a", &v) // touch a so b is oldest
	_ = mc.Set(ctx, "c", 3, 0)

	if err := mc.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted")
	}
	if mc.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", mc.Len())
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryTTL(20 * time.Millisecond))
	_ = mc.Set(ctx, "a", "x", 0)
	time.Sleep(60 * time.Millisecond)

	var s string
	if err := mc.Get(ctx, "a", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expiry, got %v (%q)", err, s)
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	_ = mc.Set(ctx, "a", 1, 0)
	_ = mc.Delete(ctx, "a")
	var v int
	if err := mc.Get(ctx, "a", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after delete")
	}
}

func TestKeys(t *testing.T) {
	if got := GenerateKey("prediction", "v1", 3); got != "prediction:v1:3" {
		t.Fatalf("unexpected key %q", got)
	}
	if HashKey("x") != HashKey("x") || HashKey("x") == HashKey("y") {
		t.Fatalf("hash should be deterministic and discriminating")
	}
	if len(HashKey("x")) != 32 {
		t.Fatalf("expected hex md5")
	}
}
