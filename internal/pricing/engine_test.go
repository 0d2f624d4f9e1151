package pricing

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleConfig() FeeConfiguration {
	return FeeConfiguration{
		PlatformFeeValue:     20,
		PlatformFeeType:      FeePercentage,
		GatewayFeePercentage: 10,
		AdditionalCosts: []AdditionalCost{
			{ID: "pack", Name: "Embalagem", Value: 5, Type: FeeFixed, Active: true},
		},
	}
}

func TestCalculatePriceWorkedExample(t *testing.T) {
	cfg := sampleConfig()

	price, err := cfg.Price(100)
	require.NoError(t, err)
	assert.Equal(t, 138.89, price)
}

func TestCalculatePriceFixedPlatformFee(t *testing.T) {
	price, err := CalculatePrice(50, 10, FeeFixed, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 60.0, price)
}

func TestCalculatePricePercentageCostsUseCostPrice(t *testing.T) {
	costs := []AdditionalCost{
		{Name: "a", Value: 10, Type: FeePercentage, Active: true},
		{Name: "b", Value: 10, Type: FeePercentage, Active: true},
	}

	// 100 + 50% platform + 10% of cost + 10% of cost, never compounded.
	price, err := CalculatePrice(100, 50, FeePercentage, 0, costs)
	require.NoError(t, err)
	assert.Equal(t, 170.0, price)
}

func TestCalculatePriceSkipsInactiveCosts(t *testing.T) {
	cfg := sampleConfig()
	cfg.AdditionalCosts = append(cfg.AdditionalCosts, AdditionalCost{Name: "seguro", Value: 50, Type: FeeFixed, Active: false})

	price, err := cfg.Price(100)
	require.NoError(t, err)
	assert.Equal(t, 138.89, price)
}

func TestCalculatePriceRejectsInvalidCost(t *testing.T) {
	cfg := sampleConfig()
	for _, cost := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := cfg.Price(cost)
		assert.ErrorIs(t, err, ErrInvalidCostPrice, "cost %v", cost)
	}
}

func TestCalculatePriceReportsGatewayFeeAtOrAbove100(t *testing.T) {
	for _, fee := range []float64{100, 120} {
		_, err := CalculatePrice(100, 0, FeePercentage, fee, nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGatewayFeeTooHigh))
	}
}

func TestCalculatePriceRoundsHalfAwayFromZero(t *testing.T) {
	// 0.125 * 100 = 12.5 cents -> 13 cents.
	price, err := CalculatePrice(0.125, 0, FeeFixed, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.13, price)
}

func TestCalculatePriceIsReversible(t *testing.T) {
	configs := []FeeConfiguration{
		sampleConfig(),
		{PlatformFeeValue: 7.5, PlatformFeeType: FeeFixed, GatewayFeePercentage: 4.99},
		{PlatformFeeValue: 33, PlatformFeeType: FeePercentage, GatewayFeePercentage: 0,
			AdditionalCosts: []AdditionalCost{{Name: "x", Value: 2.5, Type: FeePercentage, Active: true}}},
		{PlatformFeeValue: 0, PlatformFeeType: FeePercentage, GatewayFeePercentage: 99},
	}
	costs := []float64{0.01, 1, 9.99, 42.5, 100, 1234.56}

	for _, cfg := range configs {
		for _, cost := range costs {
			price, err := cfg.Price(cost)
			require.NoError(t, err)

			before := cost + platformFeeAmount(cost, cfg.PlatformFeeValue, cfg.PlatformFeeType)
			for _, ac := range cfg.ActiveCosts() {
				before += additionalCostAmount(cost, ac)
			}
			recovered := price * (1 - cfg.GatewayFeePercentage/100)
			assert.InDelta(t, before, recovered, 0.01, "cost %v cfg %+v", cost, cfg)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FeeConfiguration)
		wantErr error
	}{
		{name: "valid", mutate: func(*FeeConfiguration) {}},
		{name: "gateway at 100", mutate: func(c *FeeConfiguration) { c.GatewayFeePercentage = 100 }, wantErr: ErrGatewayFeeTooHigh},
		{name: "negative gateway", mutate: func(c *FeeConfiguration) { c.GatewayFeePercentage = -1 }, wantErr: ErrInvalidFeeValue},
		{name: "bad platform type", mutate: func(c *FeeConfiguration) { c.PlatformFeeType = "flat" }, wantErr: ErrInvalidFeeType},
		{name: "nan platform fee", mutate: func(c *FeeConfiguration) { c.PlatformFeeValue = math.NaN() }, wantErr: ErrInvalidFeeValue},
		{name: "bad additional cost type", mutate: func(c *FeeConfiguration) { c.AdditionalCosts[0].Type = "" }, wantErr: ErrInvalidFeeType},
		{name: "negative additional cost", mutate: func(c *FeeConfiguration) { c.AdditionalCosts[0].Value = -3 }, wantErr: ErrInvalidFeeValue},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := sampleConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAutoPricingActive(t *testing.T) {
	assert.True(t, AutoPricingActive(true, true))
	assert.False(t, AutoPricingActive(true, false))
	assert.False(t, AutoPricingActive(false, true))
	assert.False(t, AutoPricingActive(false, false))
}
