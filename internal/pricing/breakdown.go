package pricing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CostLine is one active additional cost as shown in a breakdown.
type CostLine struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// PriceBreakdown decomposes a sale price into its parts. It is derived on
// demand and never stored.
type PriceBreakdown struct {
	CostPrice            float64    `json:"cost_price"`
	PlatformFeeAmount    float64    `json:"platform_fee_amount"`
	PlatformFeeLabel     string     `json:"platform_fee_label"`
	AdditionalCosts      []CostLine `json:"additional_costs"`
	AdditionalCostsTotal float64    `json:"additional_costs_total"`
	GatewayFeeAmount     float64    `json:"gateway_fee_amount"`
	GatewayFeeLabel      string     `json:"gateway_fee_label"`
	TotalPrice           float64    `json:"total_price"`
}

// GetPriceBreakdown explains how CalculatePrice arrives at the sale price for
// costPrice. A nil breakdown with a nil error means "not computable yet": the
// configuration is absent or the cost price is missing, NaN or not positive.
//
// Fee lines are settled in whole centavos and the gateway fee is the residual
// between the total and the other lines, so Sum always equals TotalPrice.
func GetPriceBreakdown(costPrice float64, config *FeeConfiguration) (*PriceBreakdown, error) {
	if config == nil || math.IsNaN(costPrice) || costPrice <= 0 {
		return nil, nil
	}

	total, err := config.Price(costPrice)
	if err != nil {
		return nil, err
	}

	platform := ToCentavos(platformFeeAmount(costPrice, config.PlatformFeeValue, config.PlatformFeeType))

	active := config.ActiveCosts()
	lines := make([]CostLine, 0, len(active))
	var additional int64
	for _, cost := range active {
		amount := ToCentavos(additionalCostAmount(costPrice, cost))
		lines = append(lines, CostLine{Name: cost.Name, Amount: FromCentavos(amount)})
		additional += amount
	}

	gateway := ToCentavos(total) - ToCentavos(costPrice) - platform - additional

	return &PriceBreakdown{
		CostPrice:            costPrice,
		PlatformFeeAmount:    FromCentavos(platform),
		PlatformFeeLabel:     feeLabel(config.PlatformFeeValue, config.PlatformFeeType),
		AdditionalCosts:      lines,
		AdditionalCostsTotal: FromCentavos(additional),
		GatewayFeeAmount:     FromCentavos(gateway),
		GatewayFeeLabel:      percentLabel(config.GatewayFeePercentage),
		TotalPrice:           total,
	}, nil
}

// Sum adds the breakdown lines in centavos.
func (b *PriceBreakdown) Sum() float64 {
	return FromCentavos(ToCentavos(b.CostPrice) + ToCentavos(b.PlatformFeeAmount) +
		ToCentavos(b.AdditionalCostsTotal) + ToCentavos(b.GatewayFeeAmount))
}

// ToCentavos converts a BRL amount to whole centavos, half away from zero.
func ToCentavos(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCentavos converts whole centavos back to BRL.
func FromCentavos(cents int64) float64 {
	return float64(cents) / 100
}

func feeLabel(value float64, feeType FeeType) string {
	if feeType == FeeFixed {
		return FormatBRL(value)
	}
	return percentLabel(value)
}

func percentLabel(value float64) string {
	return strings.Replace(strconv.FormatFloat(value, 'f', -1, 64), ".", ",", 1) + "%"
}

// FormatBRL renders an amount as Brazilian reais, e.g. "R$ 1.234,50".
func FormatBRL(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	cents := int64(math.Round(amount * 100))
	whole := strconv.FormatInt(cents/100, 10)

	var grouped strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(digit)
	}

	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
