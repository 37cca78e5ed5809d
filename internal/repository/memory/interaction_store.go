// Package memory holds in-process stores used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"sort"
	"sync"
	"time"
)

type InteractionStore struct {
	mu     sync.RWMutex
	rows   []domain.Interaction
	nextID uint64
}

func NewInteractionStore() *InteractionStore {
	return &InteractionStore{nextID: 1}
}

func (s *InteractionStore) Save(ctx context.Context, in *domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if in == nil {
		return fmt.Errorf("nil interaction")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	in.ID = s.nextID
	s.nextID++
	s.rows = append(s.rows, *in)
	return nil
}

// InteractionsByUser returns newest first.
func (s *InteractionStore) InteractionsByUser(ctx context.Context, userID uint64) ([]domain.Interaction, error) {
	return s.filter(ctx, func(in domain.Interaction) bool { return in.UserID == userID })
}

func (s *InteractionStore) InteractionsByUserAndType(ctx context.Context, userID uint64, t domain.InteractionType) ([]domain.Interaction, error) {
	return s.filter(ctx, func(in domain.Interaction) bool { return in.UserID == userID && in.Type == t })
}

func (s *InteractionStore) filter(ctx context.Context, keep func(domain.Interaction) bool) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Interaction, 0)
	for _, in := range s.rows {
		if keep(in) {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *InteractionStore) UsersInteractedWithProduct(ctx context.Context, productID uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinct(s.rows, func(in domain.Interaction) (uint64, bool) {
		return in.UserID, in.ProductID == productID
	}), nil
}

func (s *InteractionStore) ProductsInteractedByUser(ctx context.Context, userID uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return distinct(s.rows, func(in domain.Interaction) (uint64, bool) {
		return in.ProductID, in.UserID == userID
	}), nil
}

// distinct keeps first-seen order.
func distinct(rows []domain.Interaction, pick func(domain.Interaction) (uint64, bool)) []uint64 {
	seen := make(map[uint64]struct{})
	out := make([]uint64, 0)
	for _, in := range rows {
		id, ok := pick(in)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s *InteractionStore) CountInteractions(ctx context.Context, userID, productID uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, in := range s.rows {
		if in.UserID == userID && in.ProductID == productID {
			n++
		}
	}
	return n, nil
}

func (s *InteractionStore) AverageRating(ctx context.Context, productID uint64) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum, n int
	for _, in := range s.rows {
		if in.ProductID == productID && in.Rating != nil {
			sum += *in.Rating
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

// TrendingProducts counts interactions at or after since, busiest first.
func (s *InteractionStore) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]domain.ProductActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	counts := make(map[uint64]int64)
	for _, in := range s.rows {
		if !in.Timestamp.Before(since) {
			counts[in.ProductID]++
		}
	}
	s.mu.RUnlock()

	out := make([]domain.ProductActivity, 0, len(counts))
	for pid, c := range counts {
		out = append(out, domain.ProductActivity{ProductID: pid, InteractionCount: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].InteractionCount == out[j].InteractionCount {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].InteractionCount > out[j].InteractionCount
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
