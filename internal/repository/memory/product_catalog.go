package memory

import (
	"context"
	"fmt"
	"hybridReco/domain"
	"sync"
)

type ProductCatalog struct {
	mu       sync.RWMutex
	products []domain.Product
}

func NewProductCatalog(products ...domain.Product) *ProductCatalog {
	c := &ProductCatalog{}
	c.products = append(c.products, products...)
	return c
}

// Add appends products or replaces the ones with a matching id.
func (c *ProductCatalog) Add(products ...domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range products {
		replaced := false
		for i := range c.products {
			if c.products[i].ID == p.ID {
				c.products[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			c.products = append(c.products, p)
		}
	}
}

func (c *ProductCatalog) FindAll(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out, nil
}

func (c *ProductCatalog) FindByIDs(ctx context.Context, ids []uint64) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	want := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Product, 0, len(ids))
	for _, p := range c.products {
		if _, ok := want[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}
