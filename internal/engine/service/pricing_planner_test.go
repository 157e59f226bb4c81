package service

import (
	"math/rand"
	"testing"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/utils"

	"github.com/stretchr/testify/assert"
)

func newTestPlanner() PricingPlanner {
	cfg := config.Default()
	return NewPricingPlanner(cfg.Pricing, cfg.Trading)
}

func TestRecommendAction(t *testing.T) {
	assert.Equal(t, dto.PricingActionRaise, RecommendAction(100, 104))
	assert.Equal(t, dto.PricingActionKeep, RecommendAction(100, 101))
	assert.Equal(t, dto.PricingActionRaise, RecommendAction(100, 103))
	assert.Equal(t, dto.PricingActionLower, RecommendAction(100, 96))
	assert.Equal(t, dto.PricingActionKeep, RecommendAction(100, 97.5))
	assert.Equal(t, dto.PricingActionSet, RecommendAction(0, 120))
}

func TestPlanFreshTradeWithoutTarget(t *testing.T) {
	plan := newTestPlanner().Plan(dto.PricingInput{
		Mode:               dto.PricingModeBalanced,
		ApprovedBuyPrice:   100,
		ExpectedSalePrice:  200,
		SuggestedListPrice: 206,
		CILow:              190,
		CIHigh:             215,
	})

	assert.Equal(t, dto.PricingActionSet, plan.Action)
	assert.Equal(t, dto.UrgencyLow, plan.Urgency)
	assert.Equal(t, 0, plan.SimilarSalesCount)
	// min profitable = (100+8+20)/0.94 = 136.17, floor = max(that, 180.5)
	assert.Equal(t, 180.5, plan.PriceFloor)
	assert.Equal(t, 221.45, plan.PriceCeiling)
	assert.GreaterOrEqual(t, plan.RecommendedPrice, plan.PriceFloor)
	assert.LessOrEqual(t, plan.RecommendedPrice, plan.PriceCeiling)
	assert.Len(t, plan.Reasons, 6)
}

func TestPlanModesAndAgeing(t *testing.T) {
	p := newTestPlanner()
	base := dto.PricingInput{
		ApprovedBuyPrice:   80,
		CurrentTarget:      utils.ToPointer(210.0),
		ExpectedSalePrice:  200,
		SuggestedListPrice: 206,
		CILow:              150,
		CIHigh:             260,
		HoldingDays:        10,
		ActiveTrades:       30,
		SimilarPrices:      []float64{190, 200, 210, 205},
	}

	balanced := base
	balanced.Mode = dto.PricingModeBalanced
	fast := base
	fast.Mode = dto.PricingModeFastExit
	profit := base
	profit.Mode = dto.PricingModeProfitMax

	b, f, pm := p.Plan(balanced), p.Plan(fast), p.Plan(profit)
	assert.Less(t, f.RecommendedPrice, b.RecommendedPrice)
	assert.Greater(t, pm.RecommendedPrice, b.RecommendedPrice)
	assert.Equal(t, dto.UrgencyHigh, b.Urgency)
	assert.Equal(t, 4, b.SimilarSalesCount)
	assert.Greater(t, b.VolatilityRatio, 0.0)
}

func TestPlanFastExitCeilingNeverBelowFloor(t *testing.T) {
	plan := newTestPlanner().Plan(dto.PricingInput{
		Mode:               dto.PricingModeFastExit,
		ApprovedBuyPrice:   300,
		ExpectedSalePrice:  200,
		SuggestedListPrice: 206,
		CILow:              190,
		CIHigh:             215,
	})
	assert.GreaterOrEqual(t, plan.PriceCeiling, plan.PriceFloor)
	assert.Equal(t, plan.PriceFloor, plan.RecommendedPrice)
}

func TestPlanRecommendedAlwaysWithinBounds(t *testing.T) {
	p := newTestPlanner()
	r := rand.New(rand.NewSource(42))
	modes := []dto.PricingMode{dto.PricingModeBalanced, dto.PricingModeFastExit, dto.PricingModeProfitMax}

	for i := 0; i < 500; i++ {
		expected := r.Float64() * 500
		ciLow := expected * (0.5 + r.Float64()*0.5)
		in := dto.PricingInput{
			Mode:               modes[r.Intn(len(modes))],
			ApprovedBuyPrice:   r.Float64() * 400,
			ExpectedSalePrice:  expected,
			SuggestedListPrice: expected * (1 + r.Float64()*0.1),
			CILow:              ciLow,
			CIHigh:             ciLow + r.Float64()*expected,
			HoldingDays:        r.Intn(90),
			ActiveTrades:       r.Intn(60),
		}
		if r.Intn(2) == 0 {
			in.SimilarPrices = []float64{r.Float64() * 300, r.Float64() * 300, r.Float64() * 300}
		}

		plan := p.Plan(in)
		assert.GreaterOrEqual(t, plan.RecommendedPrice, plan.PriceFloor)
		assert.LessOrEqual(t, plan.RecommendedPrice, plan.PriceCeiling)
	}
}
