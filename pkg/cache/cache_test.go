package cache

import (
	"testing"
	"time"
)

func TestSetGet(t *testing.T) {
	c := New()
	c.Set("k", "v", time.Minute)

	v, ok := c.Get("k")
	if !ok {
		t.Fatalf("expected hit for k")
	}
	if v.(string) != "v" {
		t.Fatalf("expected v, got %v", v)
	}

	if _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New()
	c.Set("k", 1, -time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestPurgeExpired(t *testing.T) {
	c := New()
	c.Set("stale", 1, -time.Second)
	c.Set("fresh", 2, time.Minute)

	if got := c.PurgeExpired(); got != 1 {
		t.Fatalf("expected 1 purged, got %d", got)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining, got %d", c.Len())
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry should survive purge")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New()
	c.Set("rows:CLIENTA", 1, time.Minute)
	c.Set("rows:CLIENTB", 2, time.Minute)
	c.Set("other", 3, time.Minute)

	c.Invalidate("rows:")

	if _, ok := c.Get("rows:CLIENTA"); ok {
		t.Fatalf("expected rows:CLIENTA invalidated")
	}
	if _, ok := c.Get("other"); !ok {
		t.Fatalf("expected other to survive")
	}
}
