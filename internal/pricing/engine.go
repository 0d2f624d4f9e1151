package pricing

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidCostPrice signals a cost price that is zero, negative or not a finite number.
	ErrInvalidCostPrice = errors.New("pricing: cost price must be a positive finite number")
	// ErrGatewayFeeTooHigh signals a gateway fee that would make the divisor zero or negative.
	ErrGatewayFeeTooHigh = errors.New("pricing: gateway fee percentage must be below 100")
	// ErrInvalidFeeType signals an unknown fee type.
	ErrInvalidFeeType = errors.New("pricing: fee type must be percentage or fixed")
	// ErrInvalidFeeValue signals a negative or non-finite fee value.
	ErrInvalidFeeValue = errors.New("pricing: fee values must be finite and non-negative")
)

// FeeType selects how a fee value is interpreted.
type FeeType string

const (
	FeePercentage FeeType = "percentage"
	FeeFixed      FeeType = "fixed"
)

// Valid reports whether t is a known fee type.
func (t FeeType) Valid() bool {
	return t == FeePercentage || t == FeeFixed
}

// AdditionalCost is an optional extra line applied on top of cost before the gateway fee.
type AdditionalCost struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Type   FeeType `json:"type"`
	Active bool    `json:"active"`
}

// FeeConfiguration is the platform-wide fee policy.
type FeeConfiguration struct {
	PlatformFeeValue     float64          `json:"platform_fee_value"`
	PlatformFeeType      FeeType          `json:"platform_fee_type"`
	GatewayFeePercentage float64          `json:"gateway_fee_percentage"`
	AdditionalCosts      []AdditionalCost `json:"additional_costs"`
}

// CalculatePrice maps a cost price and a fee policy to the final sale price.
//
// The platform fee and every active additional cost are added to the cost
// (percentages are taken from the cost, not the running total). The gateway
// fee is then applied as a divisor so that the processor's cut, taken from
// the charged price, leaves the intended amount. The result is rounded to
// cents, half away from zero.
func CalculatePrice(costPrice, platformFeeValue float64, platformFeeType FeeType, gatewayFeePercentage float64, additionalCosts []AdditionalCost) (float64, error) {
	if !validCost(costPrice) {
		return 0, ErrInvalidCostPrice
	}
	if gatewayFeePercentage >= 100 {
		return 0, fmt.Errorf("%w: got %v", ErrGatewayFeeTooHigh, gatewayFeePercentage)
	}

	priceBeforeFee := costPrice + platformFeeAmount(costPrice, platformFeeValue, platformFeeType)
	for _, cost := range additionalCosts {
		if !cost.Active {
			continue
		}
		priceBeforeFee += additionalCostAmount(costPrice, cost)
	}

	return roundCents(applyGatewayFee(priceBeforeFee, gatewayFeePercentage)), nil
}

// Price is CalculatePrice bound to the receiver's policy.
func (c FeeConfiguration) Price(costPrice float64) (float64, error) {
	return CalculatePrice(costPrice, c.PlatformFeeValue, c.PlatformFeeType, c.GatewayFeePercentage, c.AdditionalCosts)
}

// ActiveCosts returns the additional costs currently switched on, in order.
func (c FeeConfiguration) ActiveCosts() []AdditionalCost {
	active := make([]AdditionalCost, 0, len(c.AdditionalCosts))
	for _, cost := range c.AdditionalCosts {
		if cost.Active {
			active = append(active, cost)
		}
	}
	return active
}

// Validate rejects policies that would produce non-finite or negative prices.
// It is meant to run before a configuration is persisted.
func (c FeeConfiguration) Validate() error {
	if !c.PlatformFeeType.Valid() {
		return fmt.Errorf("%w: platform fee type %q", ErrInvalidFeeType, c.PlatformFeeType)
	}
	if !validFee(c.PlatformFeeValue) {
		return fmt.Errorf("%w: platform fee %v", ErrInvalidFeeValue, c.PlatformFeeValue)
	}
	if !validFee(c.GatewayFeePercentage) {
		return fmt.Errorf("%w: gateway fee %v", ErrInvalidFeeValue, c.GatewayFeePercentage)
	}
	if c.GatewayFeePercentage >= 100 {
		return fmt.Errorf("%w: got %v", ErrGatewayFeeTooHigh, c.GatewayFeePercentage)
	}
	for i, cost := range c.AdditionalCosts {
		if !cost.Type.Valid() {
			return fmt.Errorf("%w: additional cost %d (%s) type %q", ErrInvalidFeeType, i, cost.Name, cost.Type)
		}
		if !validFee(cost.Value) {
			return fmt.Errorf("%w: additional cost %d (%s) value %v", ErrInvalidFeeValue, i, cost.Name, cost.Value)
		}
	}
	return nil
}

// AutoPricingActive reports whether the sale price must be derived from the
// cost price. The privilege check lives with the caller.
func AutoPricingActive(toggle, privileged bool) bool {
	return toggle && privileged
}

func platformFeeAmount(costPrice, value float64, feeType FeeType) float64 {
	switch feeType {
	case FeePercentage:
		return costPrice * value / 100
	case FeeFixed:
		return value
	default:
		return 0
	}
}

func additionalCostAmount(costPrice float64, cost AdditionalCost) float64 {
	switch cost.Type {
	case FeePercentage:
		return costPrice * cost.Value / 100
	case FeeFixed:
		return cost.Value
	default:
		return 0
	}
}

func applyGatewayFee(priceBeforeFee, gatewayFeePercentage float64) float64 {
	return priceBeforeFee / (1 - gatewayFeePercentage/100)
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}

func validCost(costPrice float64) bool {
	return !math.IsNaN(costPrice) && !math.IsInf(costPrice, 0) && costPrice > 0
}

func validFee(value float64) bool {
	return !math.IsNaN(value) && !math.IsInf(value, 0) && value >= 0
}
