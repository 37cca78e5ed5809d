package recommendation

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"time"
)

const trendingPoolFactor = 2

// TrendingEngine ranks products by interaction volume in a recent window, nudged by ratings.
type TrendingEngine struct {
	interactions InteractionStore
	cfg          Config
	now          func() time.Time
}

func NewTrendingEngine(interactions InteractionStore, cfg Config, now func() time.Time) *TrendingEngine {
	if now == nil {
		now = time.Now
	}
	return &TrendingEngine{interactions: interactions, cfg: cfg, now: now}
}

// Trending normalizes counts by the busiest product. Rated products blend in avg/5
// with TrendingRatingWeight. Results are non-personalized and expire after TrendingTTL.
func (e *TrendingEngine) Trending(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	now := e.now()
	// over-fetch so the rating blend can reorder products near the cut
	activity, err := e.interactions.TrendingProducts(ctx, now.Add(-e.cfg.TrendingWindow), limit*trendingPoolFactor)
	if err != nil {
		return nil, fmt.Errorf("load trending activity: %w", err)
	}

	var maxCount int64
	for _, a := range activity {
		if a.InteractionCount > maxCount {
			maxCount = a.InteractionCount
		}
	}
	if maxCount == 0 {
		return []domain.Recommendation{}, nil
	}

	w := e.cfg.TrendingRatingWeight
	scores := make(map[uint64]float64, len(activity))
	for _, a := range activity {
		score := float64(a.InteractionCount) / float64(maxCount)

		avg, rated, err := e.interactions.AverageRating(ctx, a.ProductID)
		if err != nil {
			return nil, fmt.Errorf("load rating of product %d: %w", a.ProductID, err)
		}
		if rated {
			score = (1-w)*score + w*(avg/5.0)
		}
		scores[a.ProductID] = score
	}

	return newBatch(nil, rankScores(scores, limit), domain.AlgorithmTrending, contextTrendingWindow, now, e.cfg.TrendingTTL), nil
}
