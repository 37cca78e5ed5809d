package memory

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"sort"
	"sync"
	"time"
)

type RecommendationStore struct {
	mu     sync.RWMutex
	rows   []domain.Recommendation
	nextID uint64
}

func NewRecommendationStore() *RecommendationStore {
	return &RecommendationStore{nextID: 1}
}

// Save assigns ids in place, like gorm does for a created slice.
func (s *RecommendationStore) Save(ctx context.Context, recs []domain.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range recs {
		recs[i].ID = s.nextID
		s.nextID++
		s.rows = append(s.rows, clone(recs[i]))
	}
	return nil
}

func clone(r domain.Recommendation) domain.Recommendation {
	if r.UserID != nil {
		r.UserID = domain.UserIDPtr(*r.UserID)
	}
	return r
}

func (s *RecommendationStore) FindByID(ctx context.Context, id uint64) (*domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rows {
		if r.ID == id {
			out := clone(r)
			return &out, nil
		}
	}
	return nil, nil
}

func (s *RecommendationStore) FindActive(ctx context.Context, userID uint64, now time.Time) ([]domain.Recommendation, error) {
	return s.byScore(ctx, func(r domain.Recommendation) bool {
		return ownedBy(r, userID) && r.Active(now)
	})
}

func (s *RecommendationStore) FindRecent(ctx context.Context, userID uint64, since time.Time) ([]domain.Recommendation, error) {
	return s.byScore(ctx, func(r domain.Recommendation) bool {
		return ownedBy(r, userID) && !r.CreatedAt.Before(since)
	})
}

func ownedBy(r domain.Recommendation, userID uint64) bool {
	return r.UserID != nil && *r.UserID == userID
}

func (s *RecommendationStore) byScore(ctx context.Context, keep func(domain.Recommendation) bool) ([]domain.Recommendation, error) {
	out, err := s.collect(ctx, keep)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *RecommendationStore) collect(ctx context.Context, keep func(domain.Recommendation) bool) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Recommendation, 0)
	for _, r := range s.rows {
		if keep(r) {
			out = append(out, clone(r))
		}
	}
	return out, nil
}

func (s *RecommendationStore) FindMostRecentByProduct(ctx context.Context, productID uint64) (*domain.Recommendation, error) {
	rows, err := s.collect(ctx, func(r domain.Recommendation) bool { return r.ProductID == productID })
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	latest := rows[0]
	for _, r := range rows[1:] {
		if r.CreatedAt.After(latest.CreatedAt) || (r.CreatedAt.Equal(latest.CreatedAt) && r.ID > latest.ID) {
			latest = r
		}
	}
	return &latest, nil
}

func (s *RecommendationStore) CountByProduct(ctx context.Context, productID uint64) (int64, error) {
	rows, err := s.collect(ctx, func(r domain.Recommendation) bool { return r.ProductID == productID })
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

// DeleteExpired removes the user's rows with expires_at <= cutoff.
func (s *RecommendationStore) DeleteExpired(ctx context.Context, userID uint64, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var deleted int64
	for _, r := range s.rows {
		if ownedBy(r, userID) && !r.Active(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

func (s *RecommendationStore) FindByUserLatest(ctx context.Context, userID uint64) ([]domain.Recommendation, error) {
	out, err := s.collect(ctx, func(r domain.Recommendation) bool { return ownedBy(r, userID) })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *RecommendationStore) AlgorithmStats(ctx context.Context) ([]domain.AlgorithmStat, error) {
	rows, err := s.collect(ctx, func(domain.Recommendation) bool { return true })
	if err != nil {
		return nil, err
	}

	type acc struct {
		n   int64
		sum float64
	}
	byAlg := make(map[domain.Algorithm]*acc)
	for _, r := range rows {
		a, ok := byAlg[r.Algorithm]
		if !ok {
			a = &acc{}
			byAlg[r.Algorithm] = a
		}
		a.n++
		a.sum += r.Score
	}

	out := make([]domain.AlgorithmStat, 0, len(byAlg))
	for alg, a := range byAlg {
		out = append(out, domain.AlgorithmStat{
			Algorithm:    alg,
			Count:        a.n,
			AverageScore: a.sum / float64(a.n),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Algorithm < out[j].Algorithm })
	return out, nil
}
