package recommendation

import (
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrContentUnavailable is returned by content scoring when no embedder is configured.
var ErrContentUnavailable = errors.New("content similarity unavailable: no embedder configured")

// Embedder turns product text into a vector. Failures are *domain.ProviderError
// or *domain.TransportError.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ProductText pairs a product with the text that represents it.
type ProductText struct {
	ProductID uint64
	Text      string
}

type ContentEngine struct {
	embedder     Embedder
	interactions InteractionStore
	catalog      ProductCatalog
	similarity   *SimilarityEngine
	recs         RecommendationStore
	eligibility  EligibilityChecker
	cfg          Config
	now          func() time.Time
}

func NewContentEngine(
	embedder Embedder,
	interactions InteractionStore,
	catalog ProductCatalog,
	similarity *SimilarityEngine,
	recs RecommendationStore,
	eligibility EligibilityChecker,
	cfg Config,
	now func() time.Time,
) *ContentEngine {
	if now == nil {
		now = time.Now
	}
	if eligibility == nil {
		eligibility = AllowAll{}
	}
	return &ContentEngine{
		embedder:     embedder,
		interactions: interactions,
		catalog:      catalog,
		similarity:   similarity,
		recs:         recs,
		eligibility:  eligibility,
		cfg:          cfg,
		now:          now,
	}
}

func (e *ContentEngine) Available() bool {
	return e.embedder != nil
}

// ContentBased scores each candidate by its best cosine similarity to any reference,
// then ranks, persists and returns the list.
func (e *ContentEngine) ContentBased(
	ctx context.Context,
	userID uint64,
	candidates, references []ProductText,
	limit int,
) ([]domain.Recommendation, error) {
	scores, err := e.scoreCandidates(ctx, candidates, references)
	if err != nil {
		return nil, err
	}

	recs := newBatch(domain.UserIDPtr(userID), rankScores(scores, limit), domain.AlgorithmContentBased,
		contextViewedProducts, e.now(), e.cfg.RecommendationTTL)
	if err := persistBatch(ctx, e.recs, recs); err != nil {
		if _, ok := domain.AsPersistenceError(err); ok {
			return recs, err
		}
		return nil, err
	}
	return recs, nil
}

// ForUser runs ContentBased with references and candidates taken from the catalog.
func (e *ContentEngine) ForUser(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	candidates, references, err := e.userTexts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.ContentBased(ctx, userID, candidates, references, limit)
}

// ForUserCandidates is ForUser without the save, used as a hybrid source.
func (e *ContentEngine) ForUserCandidates(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	candidates, references, err := e.userTexts(ctx, userID)
	if err != nil {
		return nil, err
	}
	scores, err := e.scoreCandidates(ctx, candidates, references)
	if err != nil {
		return nil, err
	}
	return newBatch(domain.UserIDPtr(userID), rankScores(scores, limit), domain.AlgorithmContentBased,
		contextViewedProducts, e.now(), e.cfg.RecommendationTTL), nil
}

// userTexts: references are the texts of products the user touched, candidates are
// eligible catalog products the user has not touched, in catalog order.
func (e *ContentEngine) userTexts(ctx context.Context, userID uint64) ([]ProductText, []ProductText, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("context error: %w", err)
	}
	if !e.Available() {
		return nil, nil, ErrContentUnavailable
	}

	touched, err := e.interactions.ProductsInteractedByUser(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("load products of user %d: %w", userID, err)
	}
	if len(touched) == 0 {
		logger.Debug("content_skipped",
			"trace_id", TraceIDFromContext(ctx),
			"user_id", userID,
			"reason", domain.ErrNoInteractionHistory.Error(),
		)
		return nil, nil, nil
	}
	own := toSet(touched)

	owned, err := e.catalog.FindByIDs(ctx, touched)
	if err != nil {
		return nil, nil, fmt.Errorf("load interacted products: %w", err)
	}
	var references []ProductText
	for _, p := range owned {
		if text := p.Text(); text != "" {
			references = append(references, ProductText{ProductID: p.ID, Text: text})
		}
	}
	if len(references) == 0 {
		return nil, nil, nil
	}

	products, err := e.catalog.FindAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	var candidates []ProductText
	for _, p := range products {
		text := p.Text()
		if text == "" {
			continue
		}
		if _, ok := own[p.ID]; ok {
			continue
		}
		if e.cfg.MaxContentCandidates > 0 && len(candidates) >= e.cfg.MaxContentCandidates {
			continue
		}
		if !e.eligibility.IsEligible(ctx, p) {
			continue
		}
		candidates = append(candidates, ProductText{ProductID: p.ID, Text: text})
	}

	return candidates, references, nil
}

// scoreCandidates keeps the maximum cosine per candidate. Pairs touching a failed or
// zero embedding are skipped. If nothing could be scored and some embedding failed,
// the first failure (in input order) is returned.
func (e *ContentEngine) scoreCandidates(ctx context.Context, candidates, references []ProductText) (map[uint64]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	if !e.Available() {
		return nil, ErrContentUnavailable
	}
	if len(candidates) == 0 || len(references) == 0 {
		return map[uint64]float64{}, nil
	}

	texts := make([]string, 0, len(candidates)+len(references))
	for _, r := range references {
		texts = append(texts, r.Text)
	}
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}

	vectors, firstErr := e.embedAll(ctx, texts)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	scores := make(map[uint64]float64)
	for _, c := range candidates {
		cv, ok := vectors[c.Text]
		if !ok || isZeroVector(cv) {
			continue
		}

		best, found := 0.0, false
		for _, r := range references {
			rv, ok := vectors[r.Text]
			if !ok || isZeroVector(rv) {
				continue
			}
			sim, err := CosineSimilarity(cv, rv)
			if err != nil {
				logger.Error("Skipping content comparison",
					"trace_id", TraceIDFromContext(ctx),
					"candidate_id", c.ProductID,
					"reference_id", r.ProductID,
					"error", err,
				)
				continue
			}
			if !found || sim > best {
				best, found = sim, true
			}
		}
		if found {
			scores[c.ProductID] = best
		}
	}

	if len(scores) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return scores, nil
}

// embedAll embeds every distinct text once, at most cfg.EmbeddingConcurrency at a time.
func (e *ContentEngine) embedAll(ctx context.Context, texts []string) (map[string][]float64, error) {
	distinct := make([]string, 0, len(texts))
	seen := make(map[string]struct{}, len(texts))
	for _, t := range texts {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}

	limit := e.cfg.EmbeddingConcurrency
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))

	var (
		mu      sync.Mutex
		vectors = make(map[string][]float64, len(distinct))
		errs    = make([]error, len(distinct))
		g       errgroup.Group
	)

	for i, text := range distinct {
		if err := sem.Acquire(ctx, 1); err != nil {
			errs[i] = fmt.Errorf("context error: %w", err)
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			vec, err := e.embedder.Embed(ctx, text)
			if err != nil {
				errs[i] = err
				logger.Warn("Embedding failed",
					"trace_id", TraceIDFromContext(ctx),
					"error", err,
				)
				return nil
			}

			mu.Lock()
			vectors[text] = vec
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			return vectors, err
		}
	}
	return vectors, nil
}

// SimilarProducts is non-personalized and not saved. It uses content similarity when an
// embedder is configured and falls back to item-item Jaccard otherwise or on failure.
func (e *ContentEngine) SimilarProducts(ctx context.Context, productID uint64, limit int) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	if e.Available() {
		scores, err := e.similarByContent(ctx, productID)
		switch {
		case err == nil && len(scores) > 0:
			return newBatch(nil, rankScores(scores, limit), domain.AlgorithmSimilarProducts,
				contextSimilarContent, e.now(), e.cfg.RecommendationTTL), nil
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("context error: %w", ctxErr)
			}
			logger.Warn("Content similarity failed, falling back to co-interaction",
				"trace_id", TraceIDFromContext(ctx),
				"product_id", productID,
				"error", err,
			)
		}
	}

	scores, err := e.similarByInteractions(ctx, productID)
	if err != nil {
		return nil, err
	}
	return newBatch(nil, rankScores(scores, limit), domain.AlgorithmSimilarProducts,
		contextCoPurchased, e.now(), e.cfg.RecommendationTTL), nil
}

func (e *ContentEngine) similarByContent(ctx context.Context, productID uint64) (map[uint64]float64, error) {
	products, err := e.catalog.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	var (
		reference  []ProductText
		candidates []ProductText
	)
	for _, p := range products {
		text := p.Text()
		if text == "" {
			continue
		}
		if p.ID == productID {
			reference = []ProductText{{ProductID: p.ID, Text: text}}
			continue
		}
		if e.cfg.MaxContentCandidates > 0 && len(candidates) >= e.cfg.MaxContentCandidates {
			continue
		}
		if !e.eligibility.IsEligible(ctx, p) {
			continue
		}
		candidates = append(candidates, ProductText{ProductID: p.ID, Text: text})
	}
	if len(reference) == 0 {
		return nil, nil
	}

	return e.scoreCandidates(ctx, candidates, reference)
}

// similarByInteractions scores every product sharing a user with productID by Jaccard.
func (e *ContentEngine) similarByInteractions(ctx context.Context, productID uint64) (map[uint64]float64, error) {
	sets := e.similarity.newUserSets()
	users, err := sets.users(ctx, productID)
	if err != nil {
		return nil, err
	}

	scores := make(map[uint64]float64)
	for uid := range users {
		products, err := e.interactions.ProductsInteractedByUser(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("load products of user %d: %w", uid, err)
		}
		for _, pid := range products {
			if pid == productID {
				continue
			}
			if _, done := scores[pid]; done {
				continue
			}
			sim, err := sets.similarity(ctx, productID, pid)
			if err != nil {
				return nil, err
			}
			scores[pid] = sim
		}
	}
	return scores, nil
}
