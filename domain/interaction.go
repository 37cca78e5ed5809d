package domain

import (
	"time"

	"gorm.io/datatypes"
)

type InteractionType string

const (
	InteractionView     InteractionType = "VIEW"
	InteractionPurchase InteractionType = "PURCHASE"
	InteractionLike     InteractionType = "LIKE"
	InteractionCartAdd  InteractionType = "CART_ADD"
	InteractionWishlist InteractionType = "WISHLIST"
)

// DefaultWeight is used when the client does not send an explicit weight.
func (t InteractionType) DefaultWeight() float64 {
	switch t {
	case InteractionPurchase:
		return 5.0
	case InteractionLike:
		return 3.0
	case InteractionCartAdd, InteractionWishlist:
		return 2.0
	case InteractionView:
		return 1.0
	default:
		return 1.0
	}
}

// CREATE TABLE public.user_interactions (
//     id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     user_id          BIGINT NOT NULL,
//     product_id       BIGINT NOT NULL,
//     interaction_type TEXT NOT NULL,
//     rating           INT,
//     weight           NUMERIC,
//     timestamp        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//     session_id       TEXT,
//     context          JSONB
// );

type Interaction struct {
	ID        uint64            `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint64            `gorm:"column:user_id;not null;index" json:"user_id"`
	ProductID uint64            `gorm:"column:product_id;not null;index" json:"product_id"`
	Type      InteractionType   `gorm:"column:interaction_type;type:text;not null" json:"interaction_type"`
	Rating    *int              `gorm:"column:rating" json:"rating,omitempty"`
	Weight    float64           `gorm:"column:weight;type:numeric" json:"weight"`
	Timestamp time.Time         `gorm:"column:timestamp;not null" json:"timestamp"`
	SessionID string            `gorm:"column:session_id;type:text" json:"session_id,omitempty"`
	Context   datatypes.JSONMap `gorm:"column:context;type:jsonb" json:"context,omitempty"`
}

func (Interaction) TableName() string {
	return "user_interactions"
}

// ProductActivity is an aggregated interaction count for one product.
type ProductActivity struct {
	ProductID        uint64 `gorm:"column:product_id"`
	InteractionCount int64  `gorm:"column:interaction_count"`
}
