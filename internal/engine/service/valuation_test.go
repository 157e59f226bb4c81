package service

import (
	"math/rand"
	"sort"
	"testing"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestValuation() ValuationService {
	return NewValuationService(config.Default().Trading)
}

func TestEstimateNearMintTwoComparables(t *testing.T) {
	got := newTestValuation().Estimate(150, dto.Features{Condition: "Near Mint", Confidence: 1}, []float64{220, 210})

	assert.Equal(t, 221.45, got.ExpectedSalePrice)
	assert.Equal(t, 2, got.ComparablesCount)
	assert.Equal(t, "Robust estimate from 2 comparable sales (p25=212.50, median=215.00, p75=217.50).", got.Reasoning)
	assert.InDelta(t, 212.5*0.98*1.03, got.CILow, 0.01)
	assert.InDelta(t, 217.5*1.02*1.03, got.CIHigh, 0.01)
	assert.GreaterOrEqual(t, got.SuggestedListPrice, got.ExpectedSalePrice)
	assert.Less(t, got.BuyLimit, got.ExpectedSalePrice)
}

func TestEstimateFallbackWithoutComparables(t *testing.T) {
	got := newTestValuation().Estimate(100, dto.Features{Condition: "unknown"}, []float64{0, -5})

	assert.Equal(t, 110.0, got.ExpectedSalePrice)
	assert.Equal(t, 88.0, got.CILow)
	assert.Equal(t, 130.0, got.CIHigh)
	assert.Equal(t, 0.28, got.ModelConfidence)
	assert.Equal(t, 0, got.ComparablesCount)
	assert.Equal(t, "Fallback estimate because no comparable sales found.", got.Reasoning)
}

func TestEstimateBuyLimitShrinksWithUncertainty(t *testing.T) {
	v := newTestValuation()
	tight := v.Estimate(100, dto.Features{Confidence: 1}, []float64{200, 201, 202, 199, 200, 198, 201, 200})
	wide := v.Estimate(100, dto.Features{Confidence: 1}, []float64{150, 260, 180, 230, 200, 170, 240, 210})

	assert.Greater(t, tight.ModelConfidence, wide.ModelConfidence)
	assert.Greater(t, tight.BuyLimit-tight.ExpectedSalePrice, wide.BuyLimit-wide.ExpectedSalePrice)
}

func TestEstimateBuyLimitNeverNegative(t *testing.T) {
	got := newTestValuation().Estimate(5, dto.Features{}, []float64{10, 11, 12})
	assert.Equal(t, 0.0, got.BuyLimit)
}

func TestPercentileBounds(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		n := 1 + r.Intn(20)
		v := make([]float64, n)
		for j := range v {
			v[j] = r.Float64() * 500
		}
		sort.Float64s(v)

		assert.Equal(t, v[0], Percentile(v, 0))
		assert.Equal(t, v[n-1], Percentile(v, 1))

		prev := Percentile(v, 0)
		for q := 0.05; q <= 1.0; q += 0.05 {
			cur := Percentile(v, q)
			require.GreaterOrEqual(t, cur, prev)
			prev = cur
		}
	}
	assert.Equal(t, 0.0, Percentile(nil, 0.5))
	assert.Equal(t, 212.5, Percentile([]float64{210, 220}, 0.25))
}

func TestTrimOutliersIQR(t *testing.T) {
	assert.Equal(t, []float64{5, 5, 5, 5, 5, 5, 5}, TrimOutliersIQR([]float64{5, 5, 5, 5, 5, 5, 5}))
	assert.Equal(t, []float64{1, 2, 900}, TrimOutliersIQR([]float64{900, 1, 2}), "short lists are only sorted")

	got := TrimOutliersIQR([]float64{100, 102, 98, 101, 99, 100, 1000})
	assert.NotContains(t, got, 1000.0)
	assert.Len(t, got, 6)
	assert.NotEmpty(t, TrimOutliersIQR([]float64{1, 1, 1, 1, 1, 50}))
}

func TestConditionMultiplierOrdering(t *testing.T) {
	mint := ConditionMultiplier("mint")
	nearMint := ConditionMultiplier("near mint")
	unknown := ConditionMultiplier("unknown")
	lightPlay := ConditionMultiplier("lp")
	played := ConditionMultiplier("played")
	damaged := ConditionMultiplier("damaged")

	assert.Equal(t, 1.05, mint)
	assert.Equal(t, 1.03, nearMint)
	assert.Equal(t, 1.05, ConditionMultiplier("NM"))
	assert.Equal(t, 0.96, ConditionMultiplier("Lightly Played"))
	assert.True(t, mint >= nearMint && nearMint >= unknown && unknown >= lightPlay && lightPlay >= played && played >= damaged)
	assert.Equal(t, 0.75, damaged)
}
