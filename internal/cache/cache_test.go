package cache

import (
	"testing"
	"time"

	"spendwise/internal/log"
)

func newTestLRU(size int, ttl time.Duration, now *time.Time) *LRUCache[string] {
	c := NewLRUCache[string](size, ttl)
	c.now = func() time.Time { return *now }
	return c
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestLRU(2, time.Minute, &now)

	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a becomes most recent
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("a = %q, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d", c.Size())
	}
}

func TestLRUCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newTestLRU(10, time.Minute, &now)
	c.Set("a", "1")
	c.Set("b", "2")

	now = now.Add(30 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should still be fresh")
	}

	now = now.Add(31 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired removed %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestViews_InvalidateUser(t *testing.T) {
	v := NewViews[string](NewLRUCache[string](10, time.Minute))
	v.Set("s1", "alice", "summary", "monthly", "2026-01-01")
	v.Set("t1", "alice", "trend")
	v.Set("s2", "alicia", "summary", "monthly", "2026-01-01")
	v.Set("s3", "bob", "summary", "daily", "2026-01-01")

	if got, ok := v.Get("alice", "summary", "monthly", "2026-01-01"); !ok || got != "s1" {
		t.Fatalf("Get = %q, %v", got, ok)
	}
	if _, ok := v.Get("alice", "summary", "weekly", "2026-01-01"); ok {
		t.Fatal("params are part of the key")
	}

	if n := v.InvalidateUser("alice"); n != 2 {
		t.Fatalf("invalidated %d, want 2", n)
	}
	if _, ok := v.Get("alice", "trend"); ok {
		t.Error("alice entries should be gone")
	}
	if _, ok := v.Get("alicia", "summary", "monthly", "2026-01-01"); !ok {
		t.Error("a user id sharing a prefix must survive")
	}
	if _, ok := v.Get("bob", "summary", "daily", "2026-01-01"); !ok {
		t.Error("bob entries must survive")
	}
}

func TestKey(t *testing.T) {
	if got := Key("u", "summary", "weekly", "2026-10-17"); got != "u|summary|weekly|2026-10-17" {
		t.Errorf("Key = %q", got)
	}
}

func TestManager_Sweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newTestLRU(10, time.Second, &now)
	b := newTestLRU(10, time.Hour, &now)
	a.Set("x", "1")
	b.Set("y", "2")

	m := NewManager(log.Discard())
	m.Register(a)
	m.Register(b)

	now = now.Add(2 * time.Second)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep removed %d, want 1", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
}
