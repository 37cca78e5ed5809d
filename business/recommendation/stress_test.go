//go:build !integration

package recommendation

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"hybridReco/internal/repository/memory"
	"math/rand"
	"sync"
	"testing"
)

// scenario params
const (
	stressNumUsers        = 200
	stressNumProducts     = 80
	stressEventsPerUser   = 15
	stressConcurrentCalls = 16
)

func TestConcurrentHybridRequests(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	store := memory.NewInteractionStore()
	types := []domain.InteractionType{
		domain.InteractionView, domain.InteractionPurchase, domain.InteractionLike,
		domain.InteractionCartAdd, domain.InteractionWishlist,
	}
	for u := 1; u <= stressNumUsers; u++ {
		for i := 0; i < stressEventsPerUser; i++ {
			record(t, store, uint64(u), uint64(rng.Intn(stressNumProducts)+1), types[rng.Intn(len(types))])
		}
	}

	products := make([]domain.Product, 0, stressNumProducts)
	vectors := make(map[string][]float64, stressNumProducts)
	for p := 1; p <= stressNumProducts; p++ {
		name := fmt.Sprintf("product-%d", p)
		products = append(products, domain.Product{ID: uint64(p), ProductName: name})
		vectors[name] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
	}

	f := newServiceFixture(store, ServiceDeps{
		Catalog:  memory.NewProductCatalog(products...),
		Embedder: newFakeEmbedder(vectors),
	})

	var wg sync.WaitGroup
	errs := make(chan error, stressConcurrentCalls)
	for w := 0; w < stressConcurrentCalls; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for u := worker + 1; u <= stressNumUsers; u += stressConcurrentCalls {
				recs, err := f.svc.GetUserRecommendations(ctx, uint64(u), 10, domain.AlgorithmHybrid)
				if err != nil {
					errs <- fmt.Errorf("user %d: %w", u, err)
					return
				}
				if len(recs) > 10 {
					errs <- fmt.Errorf("user %d: %d recommendations", u, len(recs))
					return
				}
				for i := 1; i < len(recs); i++ {
					if recs[i-1].Score < recs[i].Score {
						errs <- fmt.Errorf("user %d: unsorted batch", u)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
