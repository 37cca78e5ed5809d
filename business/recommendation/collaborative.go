package recommendation

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"sort"
	"time"
)

// CollaborativeEngine produces user-based and item-based CF lists.
// Both accumulate contributions by summing; the raw sums are clamped to [0,1]
// only when the batch is built.
type CollaborativeEngine struct {
	interactions InteractionStore
	similarity   *SimilarityEngine
	recs         RecommendationStore
	cfg          Config
	now          func() time.Time
}

func NewCollaborativeEngine(
	interactions InteractionStore,
	similarity *SimilarityEngine,
	recs RecommendationStore,
	cfg Config,
	now func() time.Time,
) *CollaborativeEngine {
	if now == nil {
		now = time.Now
	}
	return &CollaborativeEngine{
		interactions: interactions,
		similarity:   similarity,
		recs:         recs,
		cfg:          cfg,
		now:          now,
	}
}

// ScoreUserBased returns raw summed scores for products bought by similar users
// that the target has not interacted with.
func (e *CollaborativeEngine) ScoreUserBased(ctx context.Context, userID uint64) (map[uint64]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	history, err := e.interactions.InteractionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	if len(history) == 0 {
		logger.Debug("user_based_cf_skipped",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", userID,
			"reason", domain.ErrNoInteractionHistory.Error(),
		)
		return map[uint64]float64{}, nil
	}

	seen := make(map[uint64]struct{}, len(history))
	for _, in := range history {
		seen[in.ProductID] = struct{}{}
	}

	sims, err := e.similarity.UserSimilarity(ctx, userID)
	if err != nil {
		return nil, err
	}

	type neighbour struct {
		userID uint64
		sim    float64
	}
	neighbours := make([]neighbour, 0, len(sims))
	for uid, s := range sims {
		neighbours = append(neighbours, neighbour{userID: uid, sim: s})
	}
	sort.Slice(neighbours, func(i, j int) bool {
		if neighbours[i].sim == neighbours[j].sim {
			return neighbours[i].userID < neighbours[j].userID
		}
		return neighbours[i].sim > neighbours[j].sim
	})

	scores := make(map[uint64]float64)
	for _, n := range neighbours {
		purchases, err := e.interactions.InteractionsByUserAndType(ctx, n.userID, domain.InteractionPurchase)
		if err != nil {
			return nil, fmt.Errorf("load purchases of user %d: %w", n.userID, err)
		}
		for _, p := range purchases {
			if _, ok := seen[p.ProductID]; ok {
				continue
			}
			scores[p.ProductID] += n.sim
		}
	}

	return scores, nil
}

// ScoreItemBased sums Jaccard similarity between each purchased product and the other
// products of its co-interacting users, once per (purchased, user, other product) triple.
func (e *CollaborativeEngine) ScoreItemBased(ctx context.Context, userID uint64) (map[uint64]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	purchases, err := e.interactions.InteractionsByUserAndType(ctx, userID, domain.InteractionPurchase)
	if err != nil {
		return nil, fmt.Errorf("load purchases: %w", err)
	}
	if len(purchases) == 0 {
		logger.Debug("item_based_cf_skipped",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", userID,
			"reason", domain.ErrNoInteractionHistory.Error(),
		)
		return map[uint64]float64{}, nil
	}

	liked := make(map[uint64]struct{}, len(purchases))
	likedOrder := make([]uint64, 0, len(purchases))
	for _, p := range purchases {
		if _, ok := liked[p.ProductID]; ok {
			continue
		}
		liked[p.ProductID] = struct{}{}
		likedOrder = append(likedOrder, p.ProductID)
	}

	sets := e.similarity.newUserSets()
	scores := make(map[uint64]float64)

	for _, likedID := range likedOrder {
		users, err := sets.users(ctx, likedID)
		if err != nil {
			return nil, err
		}
		for other := range users {
			if other == userID {
				continue
			}
			products, err := e.interactions.ProductsInteractedByUser(ctx, other)
			if err != nil {
				return nil, fmt.Errorf("load products of user %d: %w", other, err)
			}
			for _, pid := range products {
				if _, ok := liked[pid]; ok {
					continue
				}
				sim, err := sets.similarity(ctx, likedID, pid)
				if err != nil {
					return nil, err
				}
				scores[pid] += sim
			}
		}
	}

	return scores, nil
}

// UserBased ranks, persists and returns the user-based list.
// On a failed save the ranked batch is returned together with a *domain.PersistenceError.
func (e *CollaborativeEngine) UserBased(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	scores, err := e.ScoreUserBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, userID, scores, limit, domain.AlgorithmUserBasedCF, contextSimilarUsers)
}

func (e *CollaborativeEngine) ItemBased(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	scores, err := e.ScoreItemBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, userID, scores, limit, domain.AlgorithmItemBasedCF, contextCoInteraction)
}

// UserBasedCandidates and ItemBasedCandidates build the lists without saving them;
// the hybrid path persists only its fused batch.
func (e *CollaborativeEngine) UserBasedCandidates(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	scores, err := e.ScoreUserBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newBatch(domain.UserIDPtr(userID), rankScores(scores, limit), domain.AlgorithmUserBasedCF,
		contextSimilarUsers, e.now(), e.cfg.RecommendationTTL), nil
}

func (e *CollaborativeEngine) ItemBasedCandidates(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	scores, err := e.ScoreItemBased(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newBatch(domain.UserIDPtr(userID), rankScores(scores, limit), domain.AlgorithmItemBasedCF,
		contextCoInteraction, e.now(), e.cfg.RecommendationTTL), nil
}

func (e *CollaborativeEngine) finish(
	ctx context.Context,
	userID uint64,
	scores map[uint64]float64,
	limit int,
	algorithm domain.Algorithm,
	label string,
) ([]domain.Recommendation, error) {
	// ranked on raw sums; several rows may clamp to 1.00 and keep their raw order
	recs := newBatch(domain.UserIDPtr(userID), rankScores(scores, limit), algorithm, label, e.now(), e.cfg.RecommendationTTL)

	if err := persistBatch(ctx, e.recs, recs); err != nil {
		if _, ok := domain.AsPersistenceError(err); ok {
			return recs, err
		}
		return nil, err
	}

	logger.Debug("collaborative_generated",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", userID,
		"algorithm", string(algorithm),
		"count", len(recs),
	)
	return recs, nil
}
