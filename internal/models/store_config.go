package models

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/example/vitrine/internal/pricing"
)

// AdditionalCosts is the jsonb list of extra per-product costs.
type AdditionalCosts []pricing.AdditionalCost

func (a AdditionalCosts) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}

func (a *AdditionalCosts) Scan(value any) error {
	return scanJSON(value, a)
}

// StoreConfig is a singleton row holding store identity and the fee settings
// used for every automatic price.
type StoreConfig struct {
	BaseModel
	StoreName            string          `json:"store_name"`
	LogoURL              string          `json:"logo_url"`
	ContactEmail         string          `json:"contact_email"`
	ContactPhone         string          `json:"contact_phone"`
	WhatsApp             string          `json:"whatsapp"`
	Instagram            string          `json:"instagram"`
	PlatformFeeValue     float64         `json:"platform_fee_value"`
	PlatformFeeType      pricing.FeeType `gorm:"type:varchar(16);default:percentage" json:"platform_fee_type"`
	GatewayFeePercentage float64         `json:"gateway_fee_percentage"`
	AdditionalCosts      AdditionalCosts `gorm:"type:jsonb" json:"additional_costs"`
}

func (StoreConfig) TableName() string {
	return "store_config"
}

// FeeConfiguration returns the pricing view of the stored settings.
func (s StoreConfig) FeeConfiguration() *pricing.FeeConfiguration {
	costs := make([]pricing.AdditionalCost, len(s.AdditionalCosts))
	copy(costs, s.AdditionalCosts)
	feeType := s.PlatformFeeType
	if feeType == "" {
		feeType = pricing.FeePercentage
	}
	return &pricing.FeeConfiguration{
		PlatformFeeValue:     s.PlatformFeeValue,
		PlatformFeeType:      feeType,
		GatewayFeePercentage: s.GatewayFeePercentage,
		AdditionalCosts:      costs,
	}
}

// DefaultStoreConfig is served when no row has been saved yet.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		StoreName:       "Vitrine",
		PlatformFeeType: pricing.FeePercentage,
		AdditionalCosts: AdditionalCosts{},
	}
}
