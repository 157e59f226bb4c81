package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/utils"
)

// ValuationService estimates what a card will sell for and how much we may pay.
type ValuationService interface {
	Estimate(listPrice float64, features dto.Features, comparables []float64) dto.ValuationResult
}

type valuationService struct {
	cfg config.Trading
}

// NewValuationService creates a new ValuationService.
func NewValuationService(cfg config.Trading) ValuationService {
	return &valuationService{cfg: cfg}
}

const (
	fallbackConfidence = 0.28
	minTrimSamples     = 6
)

// Estimate prices a listing from comparable sale prices.
func (s *valuationService) Estimate(listPrice float64, features dto.Features, comparables []float64) dto.ValuationResult {
	prices := make([]float64, 0, len(comparables))
	for _, p := range comparables {
		if p > 0 {
			prices = append(prices, p)
		}
	}
	sort.Float64s(prices)

	var base, low, high, confidence float64
	var reasoning string
	cleaned := TrimOutliersIQR(prices)
	count := len(cleaned)

	if count > 0 {
		p25 := Percentile(cleaned, 0.25)
		p50 := Percentile(cleaned, 0.50)
		p75 := Percentile(cleaned, 0.75)

		base = 0.65*p50 + 0.35*((p25+p75)/2)
		spreadRatio := (p75 - p25) / math.Max(p50, 0.01)
		confidence = utils.Clamp(0.42+0.02*float64(count)-0.2*spreadRatio, 0.25, 0.95)

		low = math.Max(0.01, p25*0.98)
		high = math.Max(low, p75*1.02)
		reasoning = fmt.Sprintf("Robust estimate from %d comparable sales (p25=%.2f, median=%.2f, p75=%.2f).", count, p25, p50, p75)
	} else {
		price := math.Max(listPrice, 0.01)
		base = price * 1.10
		low = price * 0.88
		high = price * 1.30
		confidence = fallbackConfidence
		reasoning = "Fallback estimate because no comparable sales found."
	}

	factor := ConditionMultiplier(features.Condition)
	expected := utils.Round(base*factor, 2)
	ciLow := utils.Round(low*factor, 2)
	ciHigh := math.Max(ciLow, utils.Round(high*factor, 2))

	if features.Confidence > 0 {
		confidence *= math.Min(features.Confidence, 1)
	}
	confidence = utils.Round(confidence, 3)

	costs := s.cfg.ShippingCost + s.cfg.PlatformFeeRate*expected
	intervalGuard := math.Max(0, (ciHigh-ciLow)*0.20)
	confidenceGuard := math.Max(0, (1-confidence)*expected*0.08)
	buyLimit := utils.Round(math.Max(0, expected-costs-s.cfg.MinProfit-intervalGuard-confidenceGuard), 2)
	suggested := utils.Round(math.Max(expected, expected*(1+s.cfg.ListMarkup)), 2)

	return dto.ValuationResult{
		ExpectedSalePrice:  expected,
		BuyLimit:           buyLimit,
		SuggestedListPrice: suggested,
		CILow:              ciLow,
		CIHigh:             ciHigh,
		ModelConfidence:    confidence,
		ComparablesCount:   count,
		Reasoning:          reasoning,
	}
}

// ConditionMultiplier maps a condition label to a price factor.
// Ordering: mint > near mint > unknown > light play > played > damaged.
func ConditionMultiplier(condition string) float64 {
	norm := strings.ToLower(strings.TrimSpace(condition))
	switch {
	case strings.Contains(norm, "near mint"):
		return 1.03
	case strings.Contains(norm, "mint") || norm == "nm":
		return 1.05
	case norm == "lp" || strings.Contains(norm, "light play") || strings.Contains(norm, "lightly played"):
		return 0.96
	case strings.Contains(norm, "played"):
		return 0.90
	case strings.Contains(norm, "damaged"):
		return 0.75
	}
	return 1.0
}

// TrimOutliersIQR drops values outside the Tukey fences. Fewer than six
// samples, a zero IQR, or a trim that would remove everything all return the
// sorted input unchanged.
func TrimOutliersIQR(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) < minTrimSamples {
		return sorted
	}

	q1 := Percentile(sorted, 0.25)
	q3 := Percentile(sorted, 0.75)
	iqr := q3 - q1
	if iqr <= 0 {
		return sorted
	}

	lower, upper := q1-1.5*iqr, q3+1.5*iqr
	filtered := make([]float64, 0, len(sorted))
	for _, v := range sorted {
		if v >= lower && v <= upper {
			filtered = append(filtered, v)
		}
	}
	if len(filtered) == 0 {
		return sorted
	}
	return filtered
}

// Percentile interpolates linearly between order statistics of a sorted
// slice at position q*(n-1). q is clamped to [0,1].
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	pos := utils.Clamp(q, 0, 1) * float64(n-1)
	lo := int(math.Floor(pos))
	hi := lo + 1
	if hi > n-1 {
		hi = n - 1
	}
	if lo == hi {
		return sorted[lo]
	}
	weight := pos - float64(lo)
	return sorted[lo]*(1-weight) + sorted[hi]*weight
}
