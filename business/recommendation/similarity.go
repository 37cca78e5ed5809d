package recommendation

import (
	"context"
	"fmt"
)

// SimilarityEngine derives user-user and item-item similarity from interaction history.
// It holds no mutable state and is safe for concurrent use.
type SimilarityEngine struct {
	interactions InteractionStore
}

func NewSimilarityEngine(interactions InteractionStore) *SimilarityEngine {
	return &SimilarityEngine{interactions: interactions}
}

// UserSimilarity counts, for every other user, how many of the target's products they
// also touched, divided by the target's distinct product count. sim(a,b) and sim(b,a) use different
// denominators, so the measure is asymmetric.
func (e *SimilarityEngine) UserSimilarity(ctx context.Context, userID uint64) (map[uint64]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	products, err := e.interactions.ProductsInteractedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load products of user %d: %w", userID, err)
	}
	own := toSet(products)
	if len(own) == 0 {
		return map[uint64]float64{}, nil
	}

	counts := make(map[uint64]float64)
	for pid := range own {
		users, err := e.interactions.UsersInteractedWithProduct(ctx, pid)
		if err != nil {
			return nil, fmt.Errorf("load users of product %d: %w", pid, err)
		}
		for other := range toSet(users) {
			if other == userID {
				continue
			}
			counts[other]++
		}
	}

	denom := float64(len(own))
	for uid, c := range counts {
		counts[uid] = c / denom
	}
	return counts, nil
}

// ItemSimilarity is the Jaccard index of the two products' user sets.
func (e *SimilarityEngine) ItemSimilarity(ctx context.Context, productA, productB uint64) (float64, error) {
	return e.newUserSets().similarity(ctx, productA, productB)
}

func (e *SimilarityEngine) newUserSets() *userSetCache {
	return &userSetCache{
		store: e.interactions,
		sets:  make(map[uint64]map[uint64]struct{}),
	}
}

// userSetCache memoizes product -> user sets for one request. Not safe for concurrent use.
type userSetCache struct {
	store InteractionStore
	sets  map[uint64]map[uint64]struct{}
}

func (c *userSetCache) users(ctx context.Context, productID uint64) (map[uint64]struct{}, error) {
	if set, ok := c.sets[productID]; ok {
		return set, nil
	}
	users, err := c.store.UsersInteractedWithProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("load users of product %d: %w", productID, err)
	}
	set := toSet(users)
	c.sets[productID] = set
	return set, nil
}

func (c *userSetCache) similarity(ctx context.Context, a, b uint64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}
	ua, err := c.users(ctx, a)
	if err != nil {
		return 0, err
	}
	ub, err := c.users(ctx, b)
	if err != nil {
		return 0, err
	}
	return jaccard(ua, ub), nil
}
