package postgres

import (
	"context"
	"errors"
	"fmt"
	"hybridReco/domain"
	"time"

	"gorm.io/gorm"
)

const saveBatchSize = 100

type RecommendationRepository struct {
	DB *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{
		DB: db,
	}
}

// Save inserts the batch in one statement group; ids are written back into recs.
func (r *RecommendationRepository) Save(ctx context.Context, recs []domain.Recommendation) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	if len(recs) == 0 {
		return nil
	}

	if err := r.DB.WithContext(ctx).CreateInBatches(&recs, saveBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save recommendations: %w", err)
	}

	return nil
}

// FindByID returns nil, nil when the row does not exist.
func (r *RecommendationRepository) FindByID(ctx context.Context, id uint64) (*domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rec domain.Recommendation
	err := r.DB.WithContext(ctx).First(&rec, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find recommendation: %w", err)
	}

	return &rec, nil
}

func (r *RecommendationRepository) FindActive(ctx context.Context, userID uint64, now time.Time) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var recs []domain.Recommendation
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at > ?", userID, now).
		Order("score DESC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find active recommendations: %w", err)
	}

	return recs, nil
}

func (r *RecommendationRepository) FindRecent(ctx context.Context, userID uint64, since time.Time) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var recs []domain.Recommendation
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("score DESC, id ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find recent recommendations: %w", err)
	}

	return recs, nil
}

func (r *RecommendationRepository) FindMostRecentByProduct(ctx context.Context, productID uint64) (*domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rec domain.Recommendation
	err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest recommendation of product: %w", err)
	}

	return &rec, nil
}

func (r *RecommendationRepository) CountByProduct(ctx context.Context, productID uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	err := r.DB.WithContext(ctx).
		Model(&domain.Recommendation{}).
		Where("product_id = ?", productID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recommendations: %w", err)
	}

	return n, nil
}

func (r *RecommendationRepository) DeleteExpired(ctx context.Context, userID uint64, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	res := r.DB.WithContext(ctx).
		Where("user_id = ? AND expires_at <= ?", userID, cutoff).
		Delete(&domain.Recommendation{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete expired recommendations: %w", res.Error)
	}

	return res.RowsAffected, nil
}

func (r *RecommendationRepository) FindByUserLatest(ctx context.Context, userID uint64) ([]domain.Recommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var recs []domain.Recommendation
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find user recommendations: %w", err)
	}

	return recs, nil
}

func (r *RecommendationRepository) AlgorithmStats(ctx context.Context) ([]domain.AlgorithmStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var stats []domain.AlgorithmStat
	err := r.DB.WithContext(ctx).
		Model(&domain.Recommendation{}).
		Select("algorithm, COUNT(*) AS count, COALESCE(AVG(score), 0) AS average_score").
		Group("algorithm").
		Order("algorithm ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate algorithm stats: %w", err)
	}

	return stats, nil
}
