package recommendation

import (
	"hybridReco/pkg/config"
	"time"
)

type Config struct {
	CollaborativeWeight float64
	ContentWeight       float64

	// applied when only one source scored a product
	ContentOnlyBoost       float64
	CollaborativeOnlyBoost float64

	DecayFactor     float64
	PopularityBoost float64

	// scores above the threshold are multiplied by the penalty
	DiversityThreshold float64
	DiversityPenalty   float64

	RecommendationTTL time.Duration
	TrendingTTL       time.Duration
	TrendingWindow    time.Duration

	// how far the popularity component of trending leans on ratings
	TrendingRatingWeight float64

	MaxContentCandidates int
	EmbeddingConcurrency int
	StageTimeout         time.Duration

	DefaultLimit int
	MaxLimit     int
}

const (
	defaultCollaborativeWeight    = 0.6
	defaultContentWeight          = 0.4
	defaultContentOnlyBoost       = 1.5
	defaultCollaborativeOnlyBoost = 1.3
	defaultDecayFactor            = 0.95
	defaultPopularityBoost        = 0.1
	defaultDiversityThreshold     = 0.8
	defaultDiversityPenalty       = 0.98
	defaultRecommendationTTL      = 7 * 24 * time.Hour
	defaultTrendingTTL            = 24 * time.Hour
	defaultTrendingWindow         = 7 * 24 * time.Hour
	defaultTrendingRatingWeight   = 0.2
	defaultMaxContentCandidates   = 50
	defaultEmbeddingConcurrency   = 4
	defaultStageTimeout           = 8 * time.Second
	defaultLimit                  = 10
	defaultMaxLimit               = 100
)

func DefaultConfig() Config {
	return Config{
		CollaborativeWeight:    defaultCollaborativeWeight,
		ContentWeight:          defaultContentWeight,
		ContentOnlyBoost:       defaultContentOnlyBoost,
		CollaborativeOnlyBoost: defaultCollaborativeOnlyBoost,

		DecayFactor:        defaultDecayFactor,
		PopularityBoost:    defaultPopularityBoost,
		DiversityThreshold: defaultDiversityThreshold,
		DiversityPenalty:   defaultDiversityPenalty,

		RecommendationTTL:    defaultRecommendationTTL,
		TrendingTTL:          defaultTrendingTTL,
		TrendingWindow:       defaultTrendingWindow,
		TrendingRatingWeight: defaultTrendingRatingWeight,

		MaxContentCandidates: defaultMaxContentCandidates,
		EmbeddingConcurrency: defaultEmbeddingConcurrency,
		StageTimeout:         defaultStageTimeout,

		DefaultLimit: defaultLimit,
		MaxLimit:     defaultMaxLimit,
	}
}

// ConfigFromApp overlays the environment driven settings on the defaults.
// Zero values keep the default.
func ConfigFromApp(cfg *config.Config) Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}

	rc := cfg.Recommendation
	out.CollaborativeWeight = rc.CollaborativeWeight
	out.ContentWeight = rc.ContentWeight
	out.DecayFactor = rc.DecayFactor
	out.PopularityBoost = rc.PopularityBoost

	if rc.DiversityThreshold > 0 {
		out.DiversityThreshold = rc.DiversityThreshold
	}
	if rc.DiversityPenalty > 0 {
		out.DiversityPenalty = rc.DiversityPenalty
	}
	if rc.RecommendationTTL > 0 {
		out.RecommendationTTL = rc.RecommendationTTL
	}
	if rc.TrendingTTL > 0 {
		out.TrendingTTL = rc.TrendingTTL
	}
	if rc.TrendingWindow > 0 {
		out.TrendingWindow = rc.TrendingWindow
	}
	if rc.MaxContentCandidates > 0 {
		out.MaxContentCandidates = rc.MaxContentCandidates
	}
	if rc.StageTimeout > 0 {
		out.StageTimeout = rc.StageTimeout
	}
	if cfg.Embedding.MaxConcurrency > 0 {
		out.EmbeddingConcurrency = cfg.Embedding.MaxConcurrency
	}

	return out
}

// clampLimit applies the default for non-positive limits and caps at MaxLimit.
func (c Config) clampLimit(limit int) int {
	if limit <= 0 {
		return c.DefaultLimit
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		return c.MaxLimit
	}
	return limit
}
