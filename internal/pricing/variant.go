package pricing

import "math"

// CalculateSellingPrice prices a single variant from its own cost. Without
// settings, or with a zero/NaN cost, the cost is returned unchanged. A
// negative cost is priced like any other and so fails with
// ErrInvalidCostPrice.
func CalculateSellingPrice(costPrice float64, settings *FeeConfiguration) (float64, error) {
	if settings == nil || costPrice == 0 || math.IsNaN(costPrice) {
		return costPrice, nil
	}
	return settings.Price(costPrice)
}
