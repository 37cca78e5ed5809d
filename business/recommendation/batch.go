package recommendation

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"time"

	"github.com/google/uuid"
)

// Context labels stored with each generated row.
const (
	contextSimilarUsers   = "similar_users"
	contextCoInteraction  = "co_interaction"
	contextViewedProducts = "viewed_products"
	contextHybridFusion   = "hybrid_fusion"
	contextSimilarContent = "similar_content"
	contextCoPurchased    = "co_interacting_users"
	contextTrendingWindow = "trending_window"
)

// newBatch builds one generation batch. Scores are normalized here and ranks start at 1.
func newBatch(
	userID *uint64,
	ranked []scoredProduct,
	algorithm domain.Algorithm,
	label string,
	now time.Time,
	ttl time.Duration,
) []domain.Recommendation {
	batchID := uuid.NewString()
	out := make([]domain.Recommendation, 0, len(ranked))
	for i, sp := range ranked {
		out = append(out, domain.Recommendation{
			UserID:       userID,
			ProductID:    sp.productID,
			Score:        domain.NormalizeScore(sp.score),
			Algorithm:    algorithm,
			RankPosition: i + 1,
			CreatedAt:    now,
			ExpiresAt:    now.Add(ttl),
			Context:      label,
			BatchID:      batchID,
		})
	}
	return out
}

// persistBatch saves a batch unless the caller has already gone away.
// A failed write comes back as *domain.PersistenceError carrying the batch.
func persistBatch(ctx context.Context, store RecommendationStore, recs []domain.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(recs) == 0 || store == nil {
		return nil
	}

	if err := store.Save(ctx, recs); err != nil {
		algorithm := string(recs[0].Algorithm)
		PersistenceFailuresTotal.WithLabelValues(algorithm).Inc()
		logger.Error("Failed to save recommendations",
			"trace_id", TraceIDFromContext(ctx),
			"algorithm", algorithm,
			"count", len(recs),
			"error", err,
		)
		return &domain.PersistenceError{Recommendations: recs, Err: err}
	}

	return nil
}
