package service

import (
	"testing"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"

	"github.com/stretchr/testify/assert"
)

func newTestRisk() RiskService {
	return NewRiskService(config.Default().Risk)
}

func healthyValuation() dto.ValuationResult {
	return dto.ValuationResult{
		ExpectedSalePrice: 200, BuyLimit: 150, SuggestedListPrice: 206,
		CILow: 190, CIHigh: 215, ModelConfidence: 0.7, ComparablesCount: 12,
	}
}

func TestAssessCleanListingIsLow(t *testing.T) {
	got := newTestRisk().Assess(dto.RiskInput{ListPrice: 100, Valuation: healthyValuation(), Text: "Pikachu SR near mint"})

	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, dto.RiskLevelLow, got.Level)
	assert.False(t, got.HardBlock)
	assert.Empty(t, got.Reasons)
}

func TestAssessZeroBuyLimitHardBlocks(t *testing.T) {
	r := newTestRisk()
	v := healthyValuation()
	v.BuyLimit = 0

	got := r.Assess(dto.RiskInput{ListPrice: 50, Valuation: v})

	assert.True(t, got.HardBlock)
	assert.Equal(t, 100.0, got.Score)
	assert.Equal(t, dto.RiskLevelHigh, got.Level)
	assert.Equal(t, ReasonBuyLimitNonPositive, got.Reasons[0])
	assert.Equal(t, entity.OpportunityStatusBlockedRisk, r.ApplyGate(entity.OpportunityStatusPendingReview, got))
}

func TestAssessListPriceAboveBuyLimit(t *testing.T) {
	got := newTestRisk().Assess(dto.RiskInput{ListPrice: 160, Valuation: healthyValuation()})
	assert.True(t, got.HardBlock)
	assert.Contains(t, got.Reasons, ReasonListPriceAboveLimit)
	assert.Contains(t, got.Reasons, ReasonInsufficientMargin)
	assert.LessOrEqual(t, got.Score, 100.0)
}

func TestAssessAdditiveFactors(t *testing.T) {
	v := healthyValuation()
	v.ComparablesCount = 2
	v.ModelConfidence = 0.30
	v.CILow, v.CIHigh = 120, 220

	got := newTestRisk().Assess(dto.RiskInput{
		ListPrice:          100,
		Valuation:          v,
		SellerListingCount: 13,
		Text:               "Charizard, QUICK SALE, add me on WeChat",
	})

	// comparables 8+4*3=20, confidence max(5,15)=15, spread (0.5-0.35)*70=10.5,
	// seller 6+2*1.5=9, keywords 18
	assert.Equal(t, 72.5, got.Score)
	assert.Equal(t, dto.RiskLevelHigh, got.Level)
	assert.False(t, got.HardBlock)
	assert.Equal(t, []string{
		ReasonTooFewComparables, ReasonLowModelConfidence, ReasonWidePriceInterval,
		ReasonSellerConcentration, ReasonSuspiciousKeywords,
	}, got.Reasons)
}

func TestAssessScoreIsClamped(t *testing.T) {
	v := dto.ValuationResult{BuyLimit: 0, ExpectedSalePrice: 1, CILow: 0, CIHigh: 100}
	got := newTestRisk().Assess(dto.RiskInput{ListPrice: 10, Valuation: v, SellerListingCount: 100, Text: "prepay"})
	assert.Equal(t, 100.0, got.Score)
}

func TestApplyGateKeepsStatusBelowBlockScore(t *testing.T) {
	r := newTestRisk()
	assert.Equal(t, entity.OpportunityStatusIgnored, r.ApplyGate(entity.OpportunityStatusIgnored, dto.RiskAssessment{Score: 69.99}))
	assert.Equal(t, entity.OpportunityStatusBlockedRisk, r.ApplyGate(entity.OpportunityStatusIgnored, dto.RiskAssessment{Score: 70}))
}

func TestFormatRiskNote(t *testing.T) {
	assert.Equal(t, "risk_score=0; risk_level=low; reasons=none", FormatRiskNote(dto.RiskAssessment{Level: "low"}))
	assert.Equal(t, "risk_score=72.5; risk_level=high; reasons=a,b",
		FormatRiskNote(dto.RiskAssessment{Score: 72.5, Level: "high", Reasons: []string{"a", "b"}}))
}
