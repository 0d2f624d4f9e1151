package models

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"

	"github.com/example/vitrine/internal/pricing"
)

const (
	VariantColor = "color"
	VariantSize  = "size"
	VariantModel = "model"
)

type Product struct {
	BaseModel
	Slug           string           `gorm:"uniqueIndex" json:"slug"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	SKU            string           `gorm:"index" json:"sku"`
	GTIN           string           `gorm:"index" json:"gtin"`
	Brand          string           `json:"brand"`
	CategoryID     *uuid.UUID       `gorm:"type:uuid;index" json:"category_id"`
	Category       *Category        `json:"category,omitempty"`
	SubcategoryID  *uuid.UUID       `gorm:"type:uuid" json:"subcategory_id"`
	Subcategory    *Subcategory     `json:"subcategory,omitempty"`
	CostPrice      float64          `json:"cost_price"`
	Price          float64          `json:"price"`
	CompareAtPrice float64          `json:"compare_at_price"`
	AutoPricing    bool             `json:"auto_pricing"`
	Active         bool             `json:"active"`
	StockQuantity  int              `json:"stock_quantity"`
	Images         pq.StringArray   `gorm:"type:text[]" json:"images"`
	Variants       []ProductVariant `json:"variants,omitempty"`
}

// MainImage returns the first stored image or an empty string.
func (p Product) MainImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductVariant is a sub-SKU keyed by a time-ordered identifier. Two variants
// may share type and value.
type ProductVariant struct {
	ID            string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	ProductID     uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	Type          string    `json:"type"`
	Name          string    `json:"name"`
	Value         string    `json:"value"`
	CostPrice     float64   `json:"cost_price"`
	PriceModifier float64   `json:"price_modifier"`
	StockQuantity int       `json:"stock_quantity"`
	ImageURL      string    `json:"image_url,omitempty"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewVariantID returns a ULID for a variant created at t.
func NewVariantID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// ApplyCostPrice stores cost and recomputes PriceModifier from it.
func (v *ProductVariant) ApplyCostPrice(cost float64, fees *pricing.FeeConfiguration) error {
	price, err := pricing.CalculateSellingPrice(cost, fees)
	if err != nil {
		return err
	}
	v.CostPrice = cost
	v.PriceModifier = price
	return nil
}

// ValidVariantType reports whether t is one of the supported variant kinds.
func ValidVariantType(t string) bool {
	switch t {
	case VariantColor, VariantSize, VariantModel:
		return true
	}
	return false
}
