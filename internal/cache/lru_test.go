package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](10, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("row", 7)
	c.Set("other", 8)
	now = now.Add(30 * time.Second)
	c.Set("other", 9) // refreshed

	now = now.Add(45 * time.Second)
	if _, ok := c.Get("row"); ok {
		t.Fatalf("row should be expired")
	}
	if removed := c.CleanExpired(); removed != 0 {
		t.Fatalf("expired entry was already dropped by Get, removed %d", removed)
	}
	now = now.Add(time.Minute)
	if removed := c.CleanExpired(); removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if c.Size() != 0 {
		t.Fatalf("cache should be empty")
	}
}

func TestLRUDelete(t *testing.T) {
	c := NewLRUCache[string](0, time.Hour)
	c.Set("k", "v")
	c.Delete("k")
	c.Delete("missing")
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestManager(t *testing.T) {
	m := NewManager(nil)
	m.Stop() // never started

	now := time.Now()
	c := NewLRUCache[int](4, time.Millisecond)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	m.Register(c)

	now = now.Add(time.Second)
	if n := m.CleanNow(); n != 1 {
		t.Fatalf("CleanNow = %d, want 1", n)
	}

	m.StartCleanup(time.Millisecond)
	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()
}
