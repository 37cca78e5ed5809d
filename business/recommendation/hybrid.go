package recommendation

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"math"
	"time"
)

// HybridEngine fuses collaborative and content candidate lists into one ranked batch.
type HybridEngine struct {
	recs RecommendationStore
	cfg  Config
	now  func() time.Time
}

func NewHybridEngine(recs RecommendationStore, cfg Config, now func() time.Time) *HybridEngine {
	if now == nil {
		now = time.Now
	}
	return &HybridEngine{recs: recs, cfg: cfg, now: now}
}

// hybridScore keeps one running average per source; they are combined only in baseScore.
type hybridScore struct {
	collaborative runningAverage
	content       runningAverage
}

// baseScore weighs the two averages. A source counts as present once it contributed,
// even if the contribution was 0.
func (e *HybridEngine) baseScore(h hybridScore) float64 {
	cf := h.collaborative.value * e.cfg.CollaborativeWeight
	c := h.content.value * e.cfg.ContentWeight

	switch {
	case h.collaborative.present() && h.content.present():
		return cf + c
	case h.content.present():
		return c * e.cfg.ContentOnlyBoost
	case h.collaborative.present():
		return cf * e.cfg.CollaborativeOnlyBoost
	default:
		return 0
	}
}

// decay applies DecayFactor^(hours/24) where hours is the whole number of hours since the
// product was last recommended to anyone.
func (e *HybridEngine) decay(score float64, last *domain.Recommendation, now time.Time) float64 {
	if last == nil {
		return score
	}
	hours := int64(now.Sub(last.CreatedAt) / time.Hour)
	if hours <= 0 {
		return score
	}
	return score * math.Pow(e.cfg.DecayFactor, float64(hours)/24.0)
}

func (e *HybridEngine) popularity(score float64, count int64) float64 {
	if count < 0 {
		count = 0
	}
	return score + math.Log(float64(count)+1)*e.cfg.PopularityBoost
}

func (e *HybridEngine) diversity(score float64) float64 {
	if score > e.cfg.DiversityThreshold {
		return score * e.cfg.DiversityPenalty
	}
	return score
}

// adjust runs decay, popularity and diversity in that order. A failed store lookup
// skips only the adjustment it feeds.
func (e *HybridEngine) adjust(ctx context.Context, productID uint64, base float64, now time.Time) float64 {
	score := base

	if e.recs != nil {
		last, err := e.recs.FindMostRecentByProduct(ctx, productID)
		if err != nil {
			logger.Warn("Skipping temporal decay",
				"trace_id", TraceIDFromContext(ctx),
				"product_id", productID,
				"error", err,
			)
		} else {
			score = e.decay(score, last, now)
		}

		count, err := e.recs.CountByProduct(ctx, productID)
		if err != nil {
			logger.Warn("Skipping popularity boost",
				"trace_id", TraceIDFromContext(ctx),
				"product_id", productID,
				"error", err,
			)
		} else {
			score = e.popularity(score, count)
		}
	}

	return e.diversity(score)
}

// Fuse merges the lists and returns the top limit HYBRID recommendations. It does not save.
func (e *HybridEngine) Fuse(
	ctx context.Context,
	userID uint64,
	collaborative, content [][]domain.Recommendation,
	limit int,
) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	merged := make(map[uint64]*hybridScore)
	get := func(pid uint64) *hybridScore {
		h, ok := merged[pid]
		if !ok {
			h = &hybridScore{}
			merged[pid] = h
		}
		return h
	}

	for _, list := range collaborative {
		for _, r := range list {
			get(r.ProductID).collaborative.add(r.Score)
		}
	}
	for _, list := range content {
		for _, r := range list {
			get(r.ProductID).content.add(r.Score)
		}
	}

	now := e.now()
	ranked := make([]scoredProduct, 0, len(merged))
	for pid, h := range merged {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context error: %w", err)
		}
		final := e.adjust(ctx, pid, e.baseScore(*h), now)
		ranked = append(ranked, scoredProduct{productID: pid, score: domain.NormalizeScore(final)})
	}

	sortScored(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	recs := newBatch(domain.UserIDPtr(userID), ranked, domain.AlgorithmHybrid, contextHybridFusion, now, e.cfg.RecommendationTTL)

	logger.Debug("hybrid_fused",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", userID,
		"candidates", len(merged),
		"returned", len(recs),
	)
	return recs, nil
}
