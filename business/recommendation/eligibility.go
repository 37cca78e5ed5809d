package recommendation

import (
	"context"
	"hybridReco/domain"
)

// EligibilityChecker decides whether a catalog product may be offered as a
// content candidate (stock, visibility).
type EligibilityChecker interface {
	IsEligible(ctx context.Context, product domain.Product) bool
}

// AllowAll is the default and accepts every product.
type AllowAll struct{}

func (AllowAll) IsEligible(ctx context.Context, product domain.Product) bool {
	return true
}

// InStockChecker only accepts products with a positive quantity.
type InStockChecker struct{}

func (InStockChecker) IsEligible(ctx context.Context, product domain.Product) bool {
	return product.InStock()
}
