package service

import (
	"fmt"
	"math"
	"sort"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/utils"
)

const (
	actionThreshold     = 0.03
	maxInventoryPenalty = 0.12
	minPriceMultiplier  = 0.60
)

// PricingPlanner recommends a resale price for an open trade.
type PricingPlanner interface {
	Plan(in dto.PricingInput) dto.PricingPlan
}

type pricingPlanner struct {
	pricing config.Pricing
	trading config.Trading
}

// NewPricingPlanner creates a new PricingPlanner.
func NewPricingPlanner(pricing config.Pricing, trading config.Trading) PricingPlanner {
	return &pricingPlanner{pricing: pricing, trading: trading}
}

// Plan computes the recommendation. The recommended price always lies in
// [PriceFloor, PriceCeiling].
func (p *pricingPlanner) Plan(in dto.PricingInput) dto.PricingPlan {
	mode, _ := dto.ParsePricingMode(string(in.Mode))
	similar := positivePrices(in.SimilarPrices)

	anchor := anchorPrice(in.ExpectedSalePrice, in.SuggestedListPrice, similar)
	volatility := volatilityRatio(similar, in.ExpectedSalePrice, in.CILow, in.CIHigh)

	ageDiscount := math.Min(p.pricing.MaxAgeDiscount, float64(in.HoldingDays)*p.pricing.AgeDiscountPerDay)
	inventory := 0.0
	if in.ActiveTrades > p.pricing.InventorySoftCap {
		inventory = math.Min(maxInventoryPenalty, float64(in.ActiveTrades-p.pricing.InventorySoftCap)*0.01)
	}
	switch mode {
	case dto.PricingModeProfitMax:
		ageDiscount *= 0.6
		inventory *= 0.7
	case dto.PricingModeFastExit:
		ageDiscount *= 1.25
		inventory *= 1.2
	}
	volDiscount := math.Min(p.pricing.MaxVolatilityDiscount, volatility*p.pricing.VolatilityFactor)

	raw := anchor * p.modeFactor(mode)
	raw *= math.Max(minPriceMultiplier, 1-ageDiscount-inventory-volDiscount)

	minProfitable := p.minProfitablePrice(in.ApprovedBuyPrice)
	floor := minProfitable
	if in.CILow > 0 {
		floor = math.Max(minProfitable, in.CILow*0.95)
	}
	ceiling := in.ExpectedSalePrice * 1.15
	if in.CIHigh > 0 {
		ceiling = in.CIHigh * 1.03
	}
	ceiling = math.Max(floor, ceiling)
	switch mode {
	case dto.PricingModeProfitMax:
		ceiling *= 1.03
	case dto.PricingModeFastExit:
		ceiling *= 0.98
	}
	ceiling = math.Max(floor, ceiling)

	recommended := utils.Clamp(raw, floor, ceiling)

	current := 0.0
	if in.CurrentTarget != nil {
		current = *in.CurrentTarget
	}

	return dto.PricingPlan{
		Mode:               mode,
		RecommendedPrice:   utils.Round(recommended, 2),
		CurrentTargetPrice: in.CurrentTarget,
		ExpectedSalePrice:  utils.Round(in.ExpectedSalePrice, 2),
		PriceFloor:         utils.Round(floor, 2),
		PriceCeiling:       utils.Round(ceiling, 2),
		HoldingDays:        in.HoldingDays,
		Urgency:            p.urgency(in.HoldingDays, inventory),
		Action:             RecommendAction(current, recommended),
		VolatilityRatio:    utils.Round(volatility, 4),
		SimilarSalesCount:  len(similar),
		Reasons: []string{
			fmt.Sprintf("mode=%s", mode),
			fmt.Sprintf("holding_days=%d", in.HoldingDays),
			fmt.Sprintf("volatility_ratio=%.4f", volatility),
			fmt.Sprintf("inventory_pressure=%.4f", inventory),
			fmt.Sprintf("min_profitable=%.2f", minProfitable),
			fmt.Sprintf("anchor=%.2f", anchor),
		},
	}
}

// RecommendAction compares a recommendation with the current target price.
func RecommendAction(current, recommended float64) string {
	if current <= 0 {
		return dto.PricingActionSet
	}
	diff := (recommended - current) / current
	switch {
	case diff >= actionThreshold:
		return dto.PricingActionRaise
	case diff <= -actionThreshold:
		return dto.PricingActionLower
	}
	return dto.PricingActionKeep
}

func (p *pricingPlanner) modeFactor(mode dto.PricingMode) float64 {
	if f, ok := p.pricing.ModeFactors[string(mode)]; ok && f > 0 {
		return f
	}
	return 1.0
}

func (p *pricingPlanner) minProfitablePrice(buyPrice float64) float64 {
	feeRate := utils.Clamp(p.trading.PlatformFeeRate, 0, 0.95)
	return (buyPrice + p.trading.ShippingCost + p.trading.MinProfit) / math.Max(0.05, 1-feeRate)
}

func (p *pricingPlanner) urgency(holdingDays int, inventory float64) string {
	switch {
	case holdingDays >= p.pricing.UrgentDays || inventory >= 0.08:
		return dto.UrgencyHigh
	case holdingDays >= p.pricing.StaleDays || inventory >= 0.03:
		return dto.UrgencyMedium
	}
	return dto.UrgencyLow
}

func anchorPrice(expected, suggested float64, similar []float64) float64 {
	anchor := 0.45*expected + 0.55*suggested
	if len(similar) > 0 {
		anchor = 0.7*anchor + 0.3*median(similar)
	}
	return math.Max(0.01, anchor)
}

func volatilityRatio(similar []float64, expected, ciLow, ciHigh float64) float64 {
	if len(similar) >= 3 {
		mean := 0.0
		for _, v := range similar {
			mean += v
		}
		mean /= float64(len(similar))
		if mean > 0 {
			variance := 0.0
			for _, v := range similar {
				variance += (v - mean) * (v - mean)
			}
			stdev := math.Sqrt(variance / float64(len(similar)))
			return utils.Clamp(stdev/mean, 0, 1)
		}
	}
	if expected > 0 {
		return utils.Clamp((ciHigh-ciLow)/expected, 0, 1)
	}
	return 0
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Percentile(sorted, 0.5)
}

func positivePrices(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}
