package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pulseplan/pulse-insights/internal/config"
	"github.com/pulseplan/pulse-insights/internal/synthesis"
)

func testAnswer(text string) *synthesis.Answer {
	return &synthesis.Answer{
		Text:       text,
		Confidence: 0.9,
		Metadata:   synthesis.Metadata{QueryType: "count"},
	}
}

func newTestCache(ttlMs int64, maxEntries int) (*MemoryCache, *time.Time) {
	now := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(config.CacheConfig{TTLMs: ttlMs, MaxEntries: maxEntries})
	c.now = func() time.Time { return now }
	return c, &now
}

func TestMemoryCache_GetSet(t *testing.T) {
	c, _ := newTestCache(300000, 10)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatal("empty cache should miss")
	}

	c.Set(ctx, "k1", testAnswer("seven tasks"))

	got, ok := c.Get(ctx, "k1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Text != "seven tasks" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	c, now := newTestCache(300000, 10)
	ctx := context.Background()

	c.Set(ctx, "k1", testAnswer("a"))

	*now = now.Add(4 * time.Minute)
	if _, ok := c.Get(ctx, "k1"); !ok {
		t.Fatal("entry should survive within TTL")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get(ctx, "k1"); ok {
		t.Fatal("entry should expire after TTL")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d after lazy eviction, want 0", c.Len())
	}
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c, _ := newTestCache(300000, 3)
	ctx := context.Background()

	c.Set(ctx, "k1", testAnswer("a"))
	c.Set(ctx, "k2", testAnswer("b"))
	c.Set(ctx, "k3", testAnswer("c"))

	// Touch k1 so k2 becomes the eviction candidate.
	c.Get(ctx, "k1")

	c.Set(ctx, "k4", testAnswer("d"))

	if _, ok := c.Get(ctx, "k2"); ok {
		t.Error("k2 should have been evicted as least recently used")
	}
	for _, k := range []string{"k1", "k3", "k4"} {
		if _, ok := c.Get(ctx, k); !ok {
			t.Errorf("%s should still be cached", k)
		}
	}
}

func TestMemoryCache_ReplaceWholesale(t *testing.T) {
	c, _ := newTestCache(300000, 10)
	ctx := context.Background()

	c.Set(ctx, "k1", testAnswer("first"))
	c.Set(ctx, "k1", testAnswer("second"))

	got, ok := c.Get(ctx, "k1")
	if !ok || got.Text != "second" {
		t.Errorf("got %v, want replaced entry", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestMemoryCache_CopyOnGet(t *testing.T) {
	c, _ := newTestCache(300000, 10)
	ctx := context.Background()

	c.Set(ctx, "k1", testAnswer("original"))

	got, _ := c.Get(ctx, "k1")
	got.Text = "mutated"

	again, _ := c.Get(ctx, "k1")
	if again.Text != "original" {
		t.Error("cached entry must not be affected by caller mutation")
	}
}

func TestMemoryCache_Defaults(t *testing.T) {
	c := NewMemoryCache(config.CacheConfig{})

	if c.maxEntries != 1000 {
		t.Errorf("default maxEntries = %d, want 1000", c.maxEntries)
	}
	if c.ttl != 5*time.Minute {
		t.Errorf("default ttl = %v, want 5m", c.ttl)
	}
}

func TestMemoryCache_CapacityBound(t *testing.T) {
	c, _ := newTestCache(300000, 5)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		c.Set(ctx, fmt.Sprintf("k%d", i), testAnswer("x"))
	}

	if c.Len() > 5 {
		t.Errorf("Len() = %d, want <= 5", c.Len())
	}
}

func TestNew_Factory(t *testing.T) {
	c, err := New(config.CacheConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("New(memory) error: %v", err)
	}
	if _, ok := c.(*MemoryCache); !ok {
		t.Errorf("New(memory) = %T, want *MemoryCache", c)
	}

	if _, err := New(config.CacheConfig{Type: "bogus"}, nil); err == nil {
		t.Error("unknown cache type should error")
	}
}
