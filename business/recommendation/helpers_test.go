package recommendation

import (
	"context"
	"errors"
	"hybridReco/domain"
	"hybridReco/internal/repository/memory"
	"math"
	"sync"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock { return &clock{t: base} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeEmbedder serves fixed vectors and counts calls per text.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	errs    map[string]error
	calls   map[string]int
}

func newFakeEmbedder(vectors map[string][]float64) *fakeEmbedder {
	return &fakeEmbedder{
		vectors: vectors,
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[text]++
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return nil, &domain.ProviderError{Op: "embed", Err: errors.New("unknown text")}
}

func (f *fakeEmbedder) callCount(text string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[text]
}

// failingSaves rejects every write.
type failingSaves struct {
	*memory.RecommendationStore
}

func (failingSaves) Save(ctx context.Context, recs []domain.Recommendation) error {
	return errors.New("database unavailable")
}

// brokenHistory fails the collaborative reads but keeps the rest of the store working.
type brokenHistory struct {
	*memory.InteractionStore
}

func (brokenHistory) InteractionsByUser(ctx context.Context, userID uint64) ([]domain.Interaction, error) {
	return nil, errors.New("interactions table locked")
}

func (brokenHistory) InteractionsByUserAndType(ctx context.Context, userID uint64, t domain.InteractionType) ([]domain.Interaction, error) {
	return nil, errors.New("interactions table locked")
}

// brokenStore fails everything.
type brokenStore struct {
	brokenHistory
}

func (brokenStore) ProductsInteractedByUser(ctx context.Context, userID uint64) ([]uint64, error) {
	return nil, errors.New("interactions table locked")
}

func (brokenStore) UsersInteractedWithProduct(ctx context.Context, productID uint64) ([]uint64, error) {
	return nil, errors.New("interactions table locked")
}

type mapCache struct {
	mu      sync.Mutex
	entries map[[2]uint64][]domain.Recommendation
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[[2]uint64][]domain.Recommendation{}}
}

func (c *mapCache) Get(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	recs, ok := c.entries[[2]uint64{userID, uint64(limit)}]
	return recs, ok
}

func (c *mapCache) Set(ctx context.Context, userID uint64, limit int, recs []domain.Recommendation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[[2]uint64{userID, uint64(limit)}] = recs
}

func (c *mapCache) InvalidateUser(ctx context.Context, userID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k[0] == userID {
			delete(c.entries, k)
		}
	}
}

func record(t *testing.T, store InteractionStore, userID, productID uint64, typ domain.InteractionType) {
	t.Helper()
	in := &domain.Interaction{
		UserID:    userID,
		ProductID: productID,
		Type:      typ,
		Weight:    typ.DefaultWeight(),
		Timestamp: base.Add(-time.Hour),
	}
	if err := store.Save(context.Background(), in); err != nil {
		t.Fatalf("seed interaction: %v", err)
	}
}

const (
	productP1 uint64 = 101
	productP2 uint64 = 102
	productP3 uint64 = 103
	productP4 uint64 = 104
)

// seedCoPurchase: user 1 bought P1 and P2; users 2, 3 and 4 bought P1 and P3;
// user 5 bought P1 and P4.
func seedCoPurchase(t *testing.T) *memory.InteractionStore {
	t.Helper()
	store := memory.NewInteractionStore()

	record(t, store, 1, productP1, domain.InteractionPurchase)
	record(t, store, 1, productP2, domain.InteractionPurchase)
	for _, u := range []uint64{2, 3, 4} {
		record(t, store, u, productP1, domain.InteractionPurchase)
		record(t, store, u, productP3, domain.InteractionPurchase)
	}
	record(t, store, 5, productP1, domain.InteractionPurchase)
	record(t, store, 5, productP4, domain.InteractionPurchase)
	return store
}

func assertRanked(t *testing.T, recs []domain.Recommendation, limit int) {
	t.Helper()
	if len(recs) > limit {
		t.Errorf("got %d recommendations, limit %d", len(recs), limit)
	}
	for i, r := range recs {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("recs[%d].Score = %v outside [0,1]", i, r.Score)
		}
		if r.RankPosition != i+1 {
			t.Errorf("recs[%d].RankPosition = %d, want %d", i, r.RankPosition, i+1)
		}
		if i > 0 && recs[i-1].Score < r.Score {
			t.Errorf("recs not sorted: %v before %v", recs[i-1].Score, r.Score)
		}
		if !r.Algorithm.Valid() {
			t.Errorf("recs[%d].Algorithm = %q", i, r.Algorithm)
		}
	}
}
