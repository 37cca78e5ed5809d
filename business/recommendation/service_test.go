package recommendation

import (
	"context"
	"errors"
	"hybridReco/domain"
	"hybridReco/internal/repository/memory"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type serviceFixture struct {
	svc   *Service
	recs  *memory.RecommendationStore
	cache *mapCache
	clock *clock
}

func newServiceFixture(store InteractionStore, deps ServiceDeps) serviceFixture {
	recs := memory.NewRecommendationStore()
	c := newClock()
	cache := newMapCache()

	deps.Interactions = store
	if deps.Recs == nil {
		deps.Recs = recs
	}
	if deps.Catalog == nil {
		deps.Catalog = memory.NewProductCatalog()
	}
	deps.Cache = cache
	deps.Now = c.Now

	return serviceFixture{
		svc:   NewService(deps, DefaultConfig()),
		recs:  recs,
		cache: cache,
		clock: c,
	}
}

func TestHybridCollaborativeOnly(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{})

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, "")
	if err != nil {
		t.Fatalf("GetUserRecommendations() error = %v", err)
	}
	assertRanked(t, got, 5)
	if len(got) == 0 {
		t.Fatal("expected recommendations from collaborative sources")
	}
	for _, r := range got {
		if r.Algorithm != domain.AlgorithmHybrid {
			t.Errorf("algorithm = %s, want HYBRID", r.Algorithm)
		}
		if r.ProductID == productP1 || r.ProductID == productP2 {
			t.Errorf("recommended already purchased product %d", r.ProductID)
		}
	}

	active, err := f.svc.FindActive(ctx, 1)
	if err != nil {
		t.Fatalf("FindActive() error = %v", err)
	}
	if len(active) != len(got) {
		t.Errorf("FindActive() = %d rows, want %d", len(active), len(got))
	}

	// only the fused batch is saved, not the source lists
	stats, _ := f.svc.AlgorithmStats(ctx)
	if len(stats) != 1 || stats[0].Algorithm != domain.AlgorithmHybrid {
		t.Errorf("AlgorithmStats() = %+v", stats)
	}
}

func TestHybridCacheAndInvalidation(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{})

	first, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first[0].BatchID != second[0].BatchID {
		t.Error("second call was not served from cache")
	}

	if err := f.svc.RecordInteraction(ctx, &domain.Interaction{UserID: 1, ProductID: productP4, Type: domain.InteractionView}); err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}

	third, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("third call: %v", err)
	}
	if len(third) == 0 || third[0].BatchID == first[0].BatchID {
		t.Error("cache was not invalidated by a new interaction")
	}
}

func TestHybridDegradesWhenCollaborativeFails(t *testing.T) {
	ctx := context.Background()
	inner := memory.NewInteractionStore()
	record(t, inner, 1, 1, domain.InteractionView)

	catalog := memory.NewProductCatalog(
		domain.Product{ID: 1, ProductName: "Apple"},
		domain.Product{ID: 2, ProductName: "Pear"},
		domain.Product{ID: 3, ProductName: "Rock"},
	)
	embedder := newFakeEmbedder(map[string][]float64{
		"Apple": {1, 0},
		"Pear":  {1, 0},
		"Rock":  {0, 1},
	})
	f := newServiceFixture(brokenHistory{inner}, ServiceDeps{Catalog: catalog, Embedder: embedder})

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("GetUserRecommendations() error = %v", err)
	}
	// content only: 1.0 * 0.4 * 1.5
	if len(got) != 2 || got[0].ProductID != 2 || got[0].Score != 0.6 {
		t.Errorf("got %+v, want Pear first at 0.6", got)
	}
	if got[1].Score != 0 {
		t.Errorf("orthogonal product score = %v, want 0", got[1].Score)
	}
}

func TestHybridDegradesWhenContentFails(t *testing.T) {
	ctx := context.Background()
	catalog := memory.NewProductCatalog(
		domain.Product{ID: productP1, ProductName: "Apple"},
		domain.Product{ID: productP2, ProductName: "Pear"},
		domain.Product{ID: productP3, ProductName: "Plum"},
		domain.Product{ID: productP4, ProductName: "Kiwi"},
	)
	embedder := newFakeEmbedder(nil)
	for _, text := range []string{"Apple", "Pear", "Plum", "Kiwi"} {
		embedder.errs[text] = &domain.TransportError{Op: "embed", Err: errors.New("connection reset")}
	}
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{Catalog: catalog, Embedder: embedder})

	failures := SourceFailuresTotal.WithLabelValues("content")
	before := testutil.ToFloat64(failures)

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if err != nil {
		t.Fatalf("GetUserRecommendations() error = %v", err)
	}
	assertRanked(t, got, 5)

	// collaborative only: P3 1.0*0.6*1.3; P4 avg(0.5, 0.2)*0.6*1.3
	if len(got) != 2 || got[0].ProductID != productP3 || got[0].Score != 0.78 ||
		got[1].ProductID != productP4 || got[1].Score != 0.27 {
		t.Errorf("got %+v, want P3 0.78 then P4 0.27", got)
	}
	for _, r := range got {
		if r.Algorithm != domain.AlgorithmHybrid {
			t.Errorf("algorithm = %s, want HYBRID", r.Algorithm)
		}
	}
	if embedder.callCount("Plum") == 0 {
		t.Error("content stage never called the embedder")
	}
	if after := testutil.ToFloat64(failures); after != before+1 {
		t.Errorf("content source failures = %v, want %v", after, before+1)
	}
}

func TestHybridBothSourcesFail(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(brokenStore{brokenHistory{memory.NewInteractionStore()}}, ServiceDeps{
		Embedder: newFakeEmbedder(nil),
	})

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	if !errors.Is(err, domain.ErrBothSourcesFailed) {
		t.Fatalf("error = %v, want ErrBothSourcesFailed", err)
	}
	if got != nil {
		t.Errorf("got %v alongside failure", got)
	}
}

func TestHybridPersistenceFailureReturnsBatch(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{
		Recs: failingSaves{memory.NewRecommendationStore()},
	})

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid)
	perr, ok := domain.AsPersistenceError(err)
	if !ok {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
	if len(got) == 0 || len(perr.Recommendations) != len(got) {
		t.Errorf("returned %d, attached %d", len(got), len(perr.Recommendations))
	}
	if _, cached := f.cache.Get(ctx, 1, 5); cached {
		t.Error("unsaved batch was cached")
	}
}

func TestGetUserRecommendationsCancelled(t *testing.T) {
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmHybrid); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if rows, _ := f.recs.FindByUserLatest(context.Background(), 1); len(rows) != 0 {
		t.Errorf("persisted %d rows for a cancelled request", len(rows))
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := map[string]domain.Algorithm{
		"":              domain.AlgorithmHybrid,
		"hybrid":        domain.AlgorithmHybrid,
		"USER_BASED":    domain.AlgorithmUserBasedCF,
		"ITEM_BASED_CF": domain.AlgorithmItemBasedCF,
		"CONTENT_BASED": domain.AlgorithmContentBased,
	}
	for in, want := range tests {
		got, err := ParseAlgorithm(in)
		if err != nil || got != want {
			t.Errorf("ParseAlgorithm(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseAlgorithm("TRENDING"); !errors.Is(err, domain.ErrInvalidAlgorithm) {
		t.Errorf("ParseAlgorithm(TRENDING) error = %v", err)
	}
}

func TestRecordInteractionValidation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInteractionStore()
	f := newServiceFixture(store, ServiceDeps{})

	six := 6
	bad := []*domain.Interaction{
		nil,
		{UserID: 1, ProductID: 1, Type: "CLICK"},
		{UserID: 1, ProductID: 1, Type: domain.InteractionPurchase, Rating: &six},
	}
	for i, in := range bad {
		if err := f.svc.RecordInteraction(ctx, in); !errors.Is(err, domain.ErrInvalidInteraction) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}

	in := &domain.Interaction{UserID: 1, ProductID: 1, Type: domain.InteractionPurchase}
	if err := f.svc.RecordInteraction(ctx, in); err != nil {
		t.Fatalf("RecordInteraction() error = %v", err)
	}
	if in.Weight != 5 || !in.Timestamp.Equal(base) || in.ID == 0 {
		t.Errorf("defaults not applied: %+v", in)
	}
}

func TestActiveExpiryAndPurge(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(seedCoPurchase(t), ServiceDeps{})

	got, err := f.svc.GetUserRecommendations(ctx, 1, 5, domain.AlgorithmItemBasedCF)
	if err != nil || len(got) == 0 {
		t.Fatalf("GetUserRecommendations() = %v, %v", got, err)
	}

	byID, err := f.svc.GetRecommendation(ctx, got[0].ID)
	if err != nil || byID.Score != got[0].Score || byID.ProductID != got[0].ProductID {
		t.Errorf("GetRecommendation() = %+v, %v", byID, err)
	}
	if _, err := f.svc.GetRecommendation(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetRecommendation(unknown) error = %v", err)
	}

	recent, _ := f.svc.FindRecent(ctx, 1, base)
	if len(recent) != len(got) {
		t.Errorf("FindRecent() = %d rows, want %d", len(recent), len(got))
	}

	f.clock.Advance(7 * 24 * time.Hour)

	active, _ := f.svc.FindActive(ctx, 1)
	if len(active) != 0 {
		t.Errorf("FindActive() after expiry = %d rows, want 0", len(active))
	}
	latest, _ := f.svc.GetRealTimeUpdates(ctx, 1)
	if len(latest) != len(got) {
		t.Errorf("GetRealTimeUpdates() = %d rows, want %d (expired rows included)", len(latest), len(got))
	}

	n, err := f.svc.PurgeExpired(ctx, 1)
	if err != nil || n != int64(len(got)) {
		t.Errorf("PurgeExpired() = %d, %v; want %d", n, err, len(got))
	}
}

func TestTrendingProducts(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInteractionStore()
	for u := uint64(1); u <= 4; u++ {
		record(t, store, u, 1, domain.InteractionView)
	}
	five := 5
	for u := uint64(1); u <= 2; u++ {
		in := &domain.Interaction{UserID: u, ProductID: 2, Type: domain.InteractionPurchase, Rating: &five, Timestamp: base.Add(-2 * time.Hour)}
		if err := store.Save(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	// outside the window
	old := &domain.Interaction{UserID: 9, ProductID: 3, Type: domain.InteractionView, Timestamp: base.Add(-8 * 24 * time.Hour)}
	if err := store.Save(ctx, old); err != nil {
		t.Fatal(err)
	}

	f := newServiceFixture(store, ServiceDeps{})
	got, err := f.svc.GetTrendingProducts(ctx, 10)
	if err != nil {
		t.Fatalf("GetTrendingProducts() error = %v", err)
	}
	assertRanked(t, got, 10)

	// P1: 4/4 unrated; P2: 0.8*0.5 + 0.2*(5/5)
	if len(got) != 2 || got[0].ProductID != 1 || got[0].Score != 1 || got[1].ProductID != 2 || got[1].Score != 0.6 {
		t.Errorf("GetTrendingProducts() = %+v", got)
	}
	for _, r := range got {
		if r.UserID != nil || r.Algorithm != domain.AlgorithmTrending || !r.ExpiresAt.Equal(base.Add(24*time.Hour)) {
			t.Errorf("unexpected trending row %+v", r)
		}
	}
}

func TestTrendingBlendsRatingBeforeTruncating(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInteractionStore()
	rate := func(userID, productID uint64, rating int) {
		in := &domain.Interaction{UserID: userID, ProductID: productID, Type: domain.InteractionPurchase,
			Rating: &rating, Timestamp: base.Add(-time.Hour)}
		if err := store.Save(ctx, in); err != nil {
			t.Fatal(err)
		}
	}
	// P1: 10 poor ratings, 0.8*1 + 0.2*(1/5) = 0.84
	for u := uint64(1); u <= 10; u++ {
		rate(u, 1, 1)
	}
	// P2: 9 top ratings, 0.8*0.9 + 0.2*1 = 0.92
	for u := uint64(1); u <= 9; u++ {
		rate(u, 2, 5)
	}

	f := newServiceFixture(store, ServiceDeps{})
	got, err := f.svc.GetTrendingProducts(ctx, 1)
	if err != nil {
		t.Fatalf("GetTrendingProducts() error = %v", err)
	}
	if len(got) != 1 || got[0].ProductID != 2 || got[0].Score != 0.92 {
		t.Errorf("GetTrendingProducts(limit=1) = %+v, want product 2 at 0.92", got)
	}
}
