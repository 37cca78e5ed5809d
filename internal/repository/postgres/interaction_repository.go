package postgres

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"time"

	"gorm.io/gorm"
)

type InteractionRepository struct {
	DB *gorm.DB
}

func NewInteractionRepository(db *gorm.DB) *InteractionRepository {
	return &InteractionRepository{
		DB: db,
	}
}

func (r *InteractionRepository) Save(ctx context.Context, interaction *domain.Interaction) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(interaction).Error; err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}

	return nil
}

func (r *InteractionRepository) InteractionsByUser(ctx context.Context, userID uint64) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.Interaction
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find interactions: %w", err)
	}

	return rows, nil
}

func (r *InteractionRepository) InteractionsByUserAndType(ctx context.Context, userID uint64, t domain.InteractionType) ([]domain.Interaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.Interaction
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND interaction_type = ?", userID, t).
		Order("timestamp DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find %s interactions: %w", t, err)
	}

	return rows, nil
}

func (r *InteractionRepository) UsersInteractedWithProduct(ctx context.Context, productID uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var ids []uint64
	err := r.DB.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("product_id = ?", productID).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find users of product: %w", err)
	}

	return ids, nil
}

func (r *InteractionRepository) ProductsInteractedByUser(ctx context.Context, userID uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var ids []uint64
	err := r.DB.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("product_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find products of user: %w", err)
	}

	return ids, nil
}

func (r *InteractionRepository) CountInteractions(ctx context.Context, userID, productID uint64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("context error: %w", err)
	}

	var n int64
	err := r.DB.WithContext(ctx).
		Model(&domain.Interaction{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}

	return n, nil
}

func (r *InteractionRepository) AverageRating(ctx context.Context, productID uint64) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, fmt.Errorf("context error: %w", err)
	}

	var row struct {
		Avg   float64
		Rated int64
	}
	err := r.DB.WithContext(ctx).
		Model(&domain.Interaction{}).
		Select("COALESCE(AVG(rating), 0) AS avg, COUNT(rating) AS rated").
		Where("product_id = ? AND rating IS NOT NULL", productID).
		Scan(&row).Error
	if err != nil {
		return 0, false, fmt.Errorf("failed to average ratings: %w", err)
	}

	return row.Avg, row.Rated > 0, nil
}

func (r *InteractionRepository) TrendingProducts(ctx context.Context, since time.Time, limit int) ([]domain.ProductActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var rows []domain.ProductActivity
	q := r.DB.WithContext(ctx).
		Model(&domain.Interaction{}).
		Select("product_id, COUNT(*) AS interaction_count").
		Where("timestamp >= ?", since).
		Group("product_id").
		Order("interaction_count DESC, product_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate trending products: %w", err)
	}

	return rows, nil
}
