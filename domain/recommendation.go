package domain

import (
	"math"
	"time"
)

type Algorithm string

const (
	AlgorithmUserBasedCF     Algorithm = "USER_BASED_CF"
	AlgorithmItemBasedCF     Algorithm = "ITEM_BASED_CF"
	AlgorithmContentBased    Algorithm = "CONTENT_BASED"
	AlgorithmSimilarProducts Algorithm = "SIMILAR_PRODUCTS"
	AlgorithmTrending        Algorithm = "TRENDING"
	AlgorithmHybrid          Algorithm = "HYBRID"
)

func (a Algorithm) Valid() bool {
	switch a {
	case AlgorithmUserBasedCF, AlgorithmItemBasedCF, AlgorithmContentBased,
		AlgorithmSimilarProducts, AlgorithmTrending, AlgorithmHybrid:
		return true
	}
	return false
}

// CREATE TABLE public.recommendations (
//     id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     user_id       BIGINT,
//     product_id    BIGINT NOT NULL,
//     score         NUMERIC(3,2),
//     algorithm     TEXT NOT NULL,
//     rank_position INT,
//     created_at    TIMESTAMPTZ NOT NULL,
//     expires_at    TIMESTAMPTZ,
//     context       TEXT,
//     batch_id      TEXT
// );

type Recommendation struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       *uint64   `gorm:"column:user_id;index" json:"user_id,omitempty"`
	ProductID    uint64    `gorm:"column:product_id;not null;index" json:"product_id"`
	Score        float64   `gorm:"column:score;type:numeric(3,2)" json:"score"`
	Algorithm    Algorithm `gorm:"column:algorithm;type:text;not null" json:"algorithm"`
	RankPosition int       `gorm:"column:rank_position" json:"rank_position"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at;index" json:"expires_at"`
	Context      string    `gorm:"column:context;type:text" json:"context,omitempty"`
	BatchID      string    `gorm:"column:batch_id;type:text" json:"batch_id,omitempty"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}

// Active reports whether the recommendation is still servable at now.
func (r Recommendation) Active(now time.Time) bool {
	return r.ExpiresAt.After(now)
}

// AlgorithmStat is the per-algorithm aggregate over persisted recommendations.
type AlgorithmStat struct {
	Algorithm    Algorithm `gorm:"column:algorithm" json:"algorithm"`
	Count        int64     `gorm:"column:count" json:"count"`
	AverageScore float64   `gorm:"column:average_score" json:"average_score"`
}

// NormalizeScore clamps to [0,1] and rounds to two decimals, the precision of the score column.
func NormalizeScore(score float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return math.Round(score*100) / 100
}

// UserIDPtr is a small helper for building personalized records.
func UserIDPtr(id uint64) *uint64 {
	return &id
}
