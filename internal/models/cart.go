package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/example/vitrine/internal/cart"
)

// CartItems is the jsonb item list of a persisted cart.
type CartItems []cart.Item

func (c CartItems) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c)
}

func (c *CartItems) Scan(value any) error {
	return scanJSON(value, c)
}

// CartRecord persists one cart per owner and storefront slug.
type CartRecord struct {
	BaseModel
	Owner        string     `gorm:"uniqueIndex:idx_cart_owner_slug" json:"owner"`
	StoreSlug    string     `gorm:"uniqueIndex:idx_cart_owner_slug" json:"store_slug"`
	Items        CartItems  `gorm:"type:jsonb" json:"items"`
	LastSyncTime *time.Time `json:"last_sync_time"`
}

// CodeSequence hands out increasing numbers per SKU prefix.
type CodeSequence struct {
	Prefix string `gorm:"primaryKey" json:"prefix"`
	Last   int    `json:"last"`
}
