package cache

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func newTestCache(size int, ttl time.Duration) (*LRUCache[string], *time.Time) {
	c := NewLRUCache[string](size, ttl)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a")
	c.Set("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatal("a should still be cached")
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 2 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestLRUExpiresEntries(t *testing.T) {
	c, now := newTestCache(10, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")

	*now = now.Add(30 * time.Second)
	c.Set("b", "refreshed")
	*now = now.Add(45 * time.Second)

	if _, ok := c.Get("a"); ok {
		t.Fatal("a should have expired")
	}
	if n := c.CleanExpired(); n != 0 {
		t.Fatalf("b was refreshed and a already dropped, cleaned %d", n)
	}
	*now = now.Add(time.Minute)
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, cleaned %d", n)
	}
}

func TestLRUStatsCountHitsAndMisses(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	c.Get("missing")
	c.Set("k", "v")
	c.Get("k")
	c.Get("k")

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestGetOrCompute(t *testing.T) {
	c, _ := newTestCache(4, time.Minute)
	calls := 0
	compute := func() (string, error) {
		calls++
		return "value", nil
	}

	if v, hit, err := c.GetOrCompute("k", compute); err != nil || hit || v != "value" {
		t.Fatalf("first call: v=%q hit=%v err=%v", v, hit, err)
	}
	if _, hit, _ := c.GetOrCompute("k", compute); !hit || calls != 1 {
		t.Fatalf("second call should hit the cache (calls=%d)", calls)
	}

	boom := errors.New("boom")
	if _, _, err := c.GetOrCompute("bad", func() (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Fatal("errors must not be cached")
	}
}

func TestManagerSweep(t *testing.T) {
	c, now := newTestCache(4, time.Second)
	c.Set("a", "1")
	*now = now.Add(2 * time.Second)

	m := NewManager(slog.Default())
	m.Register("test", c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}

	m.StartCleanup(time.Hour)
	m.Stop()
}
