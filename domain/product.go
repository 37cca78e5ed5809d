package domain

import (
	"strings"
	"time"
)

// CREATE TABLE public.products (
//     id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
//     product_name     TEXT,
//     product_category TEXT,
//     description      TEXT,
//     unit             TEXT,
//     sale_price       NUMERIC,
//     quantity         NUMERIC,
//     created_at       TIMESTAMPTZ DEFAULT NOW()
// );

// Product is the read-only catalog view the content engine needs.
type Product struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductName     string    `gorm:"column:product_name;type:text" json:"product_name"`
	ProductCategory string    `gorm:"column:product_category;type:text" json:"product_category"`
	Description     string    `gorm:"column:description;type:text" json:"description,omitempty"`
	Unit            string    `gorm:"column:unit;type:text" json:"unit,omitempty"`
	SalePrice       float64   `gorm:"column:sale_price;type:numeric" json:"sale_price"`
	Quantity        float64   `gorm:"column:quantity;type:numeric" json:"quantity"`
	CreatedAt       time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Product) TableName() string {
	return "products"
}

// Text is what gets embedded: name, category and description joined.
func (p Product) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.ProductName, p.ProductCategory, p.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ". ")
}

func (p Product) InStock() bool {
	return p.Quantity > 0
}
