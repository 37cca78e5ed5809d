package recommendation

import (
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"hybridReco/pkg/logger"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ---- Repository interfaces ----

type InteractionStore interface {
	InteractionsByUser(ctx context.Context, userID uint64) ([]domain.Interaction, error)
	InteractionsByUserAndType(ctx context.Context, userID uint64, t domain.InteractionType) ([]domain.Interaction, error)
	// distinct ids
	UsersInteractedWithProduct(ctx context.Context, productID uint64) ([]uint64, error)
	ProductsInteractedByUser(ctx context.Context, userID uint64) ([]uint64, error)
	CountInteractions(ctx context.Context, userID, productID uint64) (int64, error)
	// ok is false when the product has no rated interaction
	AverageRating(ctx context.Context, productID uint64) (avg float64, ok bool, err error)
	Save(ctx context.Context, interaction *domain.Interaction) error
	TrendingProducts(ctx context.Context, since time.Time, limit int) ([]domain.ProductActivity, error)
}

type RecommendationStore interface {
	Save(ctx context.Context, recs []domain.Recommendation) error
	FindByID(ctx context.Context, id uint64) (*domain.Recommendation, error)
	FindActive(ctx context.Context, userID uint64, now time.Time) ([]domain.Recommendation, error)
	FindRecent(ctx context.Context, userID uint64, since time.Time) ([]domain.Recommendation, error)
	// nil, nil when the product was never recommended
	FindMostRecentByProduct(ctx context.Context, productID uint64) (*domain.Recommendation, error)
	CountByProduct(ctx context.Context, productID uint64) (int64, error)
	DeleteExpired(ctx context.Context, userID uint64, cutoff time.Time) (int64, error)
	FindByUserLatest(ctx context.Context, userID uint64) ([]domain.Recommendation, error)
	AlgorithmStats(ctx context.Context) ([]domain.AlgorithmStat, error)
}

type ProductCatalog interface {
	FindAll(ctx context.Context) ([]domain.Product, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error)
}

// ResultCache memoizes hybrid results per (user, limit). Implementations log their own
// failures and report them as misses.
type ResultCache interface {
	Get(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, bool)
	Set(ctx context.Context, userID uint64, limit int, recs []domain.Recommendation)
	InvalidateUser(ctx context.Context, userID uint64)
}

type noopCache struct{}

func (noopCache) Get(context.Context, uint64, int) ([]domain.Recommendation, bool) { return nil, false }
func (noopCache) Set(context.Context, uint64, int, []domain.Recommendation)        {}
func (noopCache) InvalidateUser(context.Context, uint64)                            {}

// ---- Usecase / Service ----

type Service struct {
	interactions InteractionStore
	recs         RecommendationStore
	cache        ResultCache

	collaborative *CollaborativeEngine
	content       *ContentEngine
	hybrid        *HybridEngine
	trending      *TrendingEngine

	cfg Config
	now func() time.Time
}

type ServiceDeps struct {
	Interactions InteractionStore
	Recs         RecommendationStore
	Catalog      ProductCatalog
	// nil disables content similarity
	Embedder    Embedder
	Cache       ResultCache
	Eligibility EligibilityChecker
	Now         func() time.Time
}

func NewService(deps ServiceDeps, cfg Config) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	cache := deps.Cache
	if cache == nil {
		cache = noopCache{}
	}

	similarity := NewSimilarityEngine(deps.Interactions)

	return &Service{
		interactions:  deps.Interactions,
		recs:          deps.Recs,
		cache:         cache,
		collaborative: NewCollaborativeEngine(deps.Interactions, similarity, deps.Recs, cfg, now),
		content: NewContentEngine(deps.Embedder, deps.Interactions, deps.Catalog, similarity,
			deps.Recs, deps.Eligibility, cfg, now),
		hybrid:   NewHybridEngine(deps.Recs, cfg, now),
		trending: NewTrendingEngine(deps.Interactions, cfg, now),
		cfg:      cfg,
		now:      now,
	}
}

// ParseAlgorithm accepts the request names (USER_BASED, ITEM_BASED, CONTENT_BASED, HYBRID)
// and the stored tags. Empty means HYBRID.
func ParseAlgorithm(s string) (domain.Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "HYBRID":
		return domain.AlgorithmHybrid, nil
	case "USER_BASED", "USER_BASED_CF":
		return domain.AlgorithmUserBasedCF, nil
	case "ITEM_BASED", "ITEM_BASED_CF":
		return domain.AlgorithmItemBasedCF, nil
	case "CONTENT_BASED":
		return domain.AlgorithmContentBased, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAlgorithm, s)
	}
}

// GetUserRecommendations dispatches to the requested generator. A non-nil error may come
// with a non-nil slice when the batch was scored but not saved.
func (s *Service) GetUserRecommendations(
	ctx context.Context,
	userID uint64,
	limit int,
	algorithm domain.Algorithm,
) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	limit = s.cfg.clampLimit(limit)
	if algorithm == "" {
		algorithm = domain.AlgorithmHybrid
	}

	var (
		recs []domain.Recommendation
		err  error
	)
	switch algorithm {
	case domain.AlgorithmUserBasedCF:
		recs, err = s.collaborative.UserBased(ctx, userID, limit)
	case domain.AlgorithmItemBasedCF:
		recs, err = s.collaborative.ItemBased(ctx, userID, limit)
	case domain.AlgorithmContentBased:
		recs, err = s.content.ForUser(ctx, userID, limit)
	case domain.AlgorithmHybrid:
		recs, err = s.hybridRecommendations(ctx, userID, limit)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAlgorithm, algorithm)
	}

	if recs != nil {
		RecommendationsGeneratedTotal.WithLabelValues(string(algorithm)).Add(float64(len(recs)))
	}

	logger.Info("Recommendations generated",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", userID,
		"algorithm", string(algorithm),
		"limit", limit,
		"count", len(recs),
		"failed", err != nil,
	)
	return recs, err
}

type stageResult struct {
	source string
	recs   []domain.Recommendation
	err    error
}

func (s *Service) hybridRecommendations(ctx context.Context, userID uint64, limit int) ([]domain.Recommendation, error) {
	if cached, ok := s.cache.Get(ctx, userID, limit); ok {
		ResultCacheLookupsTotal.WithLabelValues("hit").Inc()
		return cached, nil
	}
	ResultCacheLookupsTotal.WithLabelValues("miss").Inc()

	sourceLimit := limit * 2
	stages := []struct {
		source string
		run    func(context.Context, uint64, int) ([]domain.Recommendation, error)
	}{
		{"user_based", s.collaborative.UserBasedCandidates},
		{"item_based", s.collaborative.ItemBasedCandidates},
		{"content", s.content.ForUserCandidates},
	}

	results := make([]stageResult, len(stages))
	var g errgroup.Group
	for i, st := range stages {
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, s.cfg.StageTimeout)
			defer cancel()

			recs, err := st.run(sctx, userID, sourceLimit)
			results[i] = stageResult{source: st.source, recs: recs, err: err}
			// a failing stage never cancels its siblings
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var (
		collaborative [][]domain.Recommendation
		content       [][]domain.Recommendation
		collabErrs    []error
		contentErr    error
	)
	for _, r := range results {
		if r.err != nil {
			SourceFailuresTotal.WithLabelValues(r.source).Inc()
			level := logger.Warn
			if errors.Is(r.err, ErrContentUnavailable) {
				level = logger.Debug
			}
			level("Recommendation source failed",
				"trace_id", TraceIDFromContext(ctx),
				"user_id", userID,
				"source", r.source,
				"error", r.err,
			)
			if r.source == "content" {
				contentErr = r.err
			} else {
				collabErrs = append(collabErrs, r.err)
			}
			continue
		}
		if r.source == "content" {
			content = append(content, r.recs)
		} else {
			collaborative = append(collaborative, r.recs)
		}
	}

	if len(collaborative) == 0 && contentErr != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBothSourcesFailed, errors.Join(append(collabErrs, contentErr)...))
	}

	recs, err := s.hybrid.Fuse(ctx, userID, collaborative, content, limit)
	if err != nil {
		return nil, err
	}

	if err := persistBatch(ctx, s.recs, recs); err != nil {
		if _, ok := domain.AsPersistenceError(err); ok {
			return recs, err
		}
		return nil, err
	}

	s.cache.Set(ctx, userID, limit, recs)
	return recs, nil
}

func (s *Service) GetSimilarProducts(ctx context.Context, productID uint64, limit int) ([]domain.Recommendation, error) {
	recs, err := s.content.SimilarProducts(ctx, productID, s.cfg.clampLimit(limit))
	if err != nil {
		return nil, err
	}
	RecommendationsGeneratedTotal.WithLabelValues(string(domain.AlgorithmSimilarProducts)).Add(float64(len(recs)))
	return recs, nil
}

func (s *Service) GetTrendingProducts(ctx context.Context, limit int) ([]domain.Recommendation, error) {
	recs, err := s.trending.Trending(ctx, s.cfg.clampLimit(limit))
	if err != nil {
		return nil, err
	}
	RecommendationsGeneratedTotal.WithLabelValues(string(domain.AlgorithmTrending)).Add(float64(len(recs)))
	return recs, nil
}

// RecordInteraction validates and appends one interaction, filling weight and timestamp
// defaults, then drops the user's cached hybrid results.
func (s *Service) RecordInteraction(ctx context.Context, in *domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if in == nil {
		return fmt.Errorf("%w: interaction is required", domain.ErrInvalidInteraction)
	}

	switch in.Type {
	case domain.InteractionView, domain.InteractionPurchase, domain.InteractionLike,
		domain.InteractionCartAdd, domain.InteractionWishlist:
	default:
		return fmt.Errorf("%w: unknown interaction_type %q", domain.ErrInvalidInteraction, in.Type)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return fmt.Errorf("%w: rating must be between 1 and 5", domain.ErrInvalidInteraction)
	}
	if in.Weight <= 0 {
		in.Weight = in.Type.DefaultWeight()
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = s.now()
	}

	if err := s.interactions.Save(ctx, in); err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}

	s.cache.InvalidateUser(ctx, in.UserID)

	logger.Debug("interaction_recorded",
		"trace_id", TraceIDFromContext(ctx),
		"user_id", in.UserID,
		"product_id", in.ProductID,
		"interaction_type", string(in.Type),
	)
	return nil
}

// GetRealTimeUpdates returns the user's stored rows, newest first, expired ones included.
func (s *Service) GetRealTimeUpdates(ctx context.Context, userID uint64) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	recs, err := s.recs.FindByUserLatest(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load latest recommendations: %w", err)
	}
	return recs, nil
}

func (s *Service) FindActive(ctx context.Context, userID uint64) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	recs, err := s.recs.FindActive(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("load active recommendations: %w", err)
	}
	return recs, nil
}

// FindRecent returns rows created at or after since.
func (s *Service) FindRecent(ctx context.Context, userID uint64, since time.Time) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	recs, err := s.recs.FindRecent(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("load recent recommendations: %w", err)
	}
	return recs, nil
}

// GetRecommendation returns domain.ErrNotFound for an unknown id.
func (s *Service) GetRecommendation(ctx context.Context, id uint64) (*domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	rec, err := s.recs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load recommendation %d: %w", id, err)
	}
	if rec == nil {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Service) AlgorithmStats(ctx context.Context) ([]domain.AlgorithmStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}
	stats, err := s.recs.AlgorithmStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load algorithm stats: %w", err)
	}
	return stats, nil
}
