package cache

import (
	"context"
	"hybridReco/domain"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func batch(productIDs ...uint64) []domain.Recommendation {
	out := make([]domain.Recommendation, 0, len(productIDs))
	for i, pid := range productIDs {
		out = append(out, domain.Recommendation{ProductID: pid, RankPosition: i + 1, Algorithm: domain.AlgorithmHybrid})
	}
	return out
}

func TestResultCacheTTL(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(10*time.Minute, clk.Now)

	c.Set(ctx, 1, 5, batch(10, 11))

	got, ok := c.Get(ctx, 1, 5)
	if !ok || len(got) != 2 {
		t.Fatalf("Get() = %v, %v; want hit", got, ok)
	}
	if _, ok := c.Get(ctx, 1, 10); ok {
		t.Error("different limit should miss")
	}

	clk.t = clk.t.Add(9*time.Minute + 59*time.Second)
	if _, ok := c.Get(ctx, 1, 5); !ok {
		t.Error("entry expired early")
	}

	clk.t = clk.t.Add(time.Second)
	if _, ok := c.Get(ctx, 1, 5); ok {
		t.Error("stale entry served at ttl boundary")
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 2 || s.Evictions != 1 || s.Entries != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestResultCacheInvalidateUser(t *testing.T) {
	ctx := context.Background()
	c := New(time.Hour, nil)

	c.Set(ctx, 1, 5, batch(1))
	c.Set(ctx, 1, 10, batch(1, 2))
	c.Set(ctx, 2, 5, batch(3))

	c.InvalidateUser(ctx, 1)

	if _, ok := c.Get(ctx, 1, 5); ok {
		t.Error("user 1 limit 5 survived invalidation")
	}
	if _, ok := c.Get(ctx, 1, 10); ok {
		t.Error("user 1 limit 10 survived invalidation")
	}
	if _, ok := c.Get(ctx, 2, 5); !ok {
		t.Error("user 2 was invalidated too")
	}
}

func TestResultCacheReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := New(time.Hour, nil)

	in := batch(1, 2)
	c.Set(ctx, 1, 2, in)
	in[0].ProductID = 99

	got, _ := c.Get(ctx, 1, 2)
	got[1].ProductID = 77

	again, _ := c.Get(ctx, 1, 2)
	if again[0].ProductID != 1 || again[1].ProductID != 2 {
		t.Errorf("cached batch was mutated: %+v", again)
	}
}

func TestResultCacheSweep(t *testing.T) {
	ctx := context.Background()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(time.Minute, clk.Now)

	c.Set(ctx, 1, 5, batch(1))
	c.Set(ctx, 2, 5, batch(2))
	clk.t = clk.t.Add(2 * time.Minute)
	c.Set(ctx, 3, 5, batch(3))

	if n := c.Sweep(); n != 2 {
		t.Errorf("Sweep() = %d, want 2", n)
	}
	if s := c.Stats(); s.Entries != 1 {
		t.Errorf("entries after sweep = %d, want 1", s.Entries)
	}
}
