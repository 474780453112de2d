package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestLRUCache(t *testing.T) {
	cache := NewLRUCache(3)
	defer cache.Close()

	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		if err := cache.Set(ctx, "key1", []byte("value1"), time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, err := cache.Get(ctx, "key1")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(val) != "value1" {
			t.Errorf("expected 'value1', got '%s'", string(val))
		}
	})

	t.Run("MissReturnsNil", func(t *testing.T) {
		val, err := cache.Get(ctx, "no-such-key")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if val != nil {
			t.Errorf("expected nil for miss, got %v", val)
		}
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		if err := cache.Set(ctx, "expiring", []byte("short-lived"), 20*time.Millisecond); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		val, _ := cache.Get(ctx, "expiring")
		if val == nil {
			t.Error("expected value before expiry")
		}

		time.Sleep(30 * time.Millisecond)

		val, _ = cache.Get(ctx, "expiring")
		if val != nil {
			t.Error("expected nil after expiry")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		cache.Set(ctx, "to-delete", []byte("x"), time.Minute)
		if err := cache.Delete(ctx, "to-delete"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		val, _ := cache.Get(ctx, "to-delete")
		if val != nil {
			t.Error("expected nil after delete")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		cache.Set(ctx, "key1", []byte("updated"), time.Minute)
		val, _ := cache.Get(ctx, "key1")
		if string(val) != "updated" {
			t.Errorf("expected 'updated', got '%s'", string(val))
		}
	})

	t.Run("Ping", func(t *testing.T) {
		if err := cache.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})
}

func TestLRUEviction(t *testing.T) {
	cache := NewLRUCache(3)
	defer cache.Close()

	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		cache.Set(ctx, fmt.Sprintf("key%d", i), []byte("v"), time.Minute)
	}

	// Touch key1 so key2 becomes the oldest
	cache.Get(ctx, "key1")

	// Adding a fourth evicts key2
	cache.Set(ctx, "key4", []byte("v"), time.Minute)

	size, capacity := cache.Stats()
	if size != 3 || capacity != 3 {
		t.Errorf("expected size 3/capacity 3, got %d/%d", size, capacity)
	}

	if val, _ := cache.Get(ctx, "key2"); val != nil {
		t.Error("expected key2 evicted")
	}
	if val, _ := cache.Get(ctx, "key1"); val == nil {
		t.Error("expected key1 retained after recent use")
	}
}

func TestNewCache(t *testing.T) {
	t.Run("MemoryType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type:         "memory",
			LocalMaxSize: 100,
			LocalTTL:     60,
		}

		c, err := New(cfg)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer c.Close()

		if _, ok := c.(*LRUCache); !ok {
			t.Error("expected LRUCache for memory type")
		}
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		cfg := domain.CacheConfig{
			Type: "memcached",
		}

		_, err := New(cfg)
		if err == nil {
			t.Error("expected error for unsupported type")
		}
	})
}
