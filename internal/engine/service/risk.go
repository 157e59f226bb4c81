package service

import (
	"fmt"
	"math"
	"strings"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/utils"
)

// Risk reason tags, in the order they can be appended.
const (
	ReasonBuyLimitNonPositive = "buy_limit_non_positive"
	ReasonListPriceAboveLimit = "list_price_above_buy_limit"
	ReasonTooFewComparables   = "too_few_comparables"
	ReasonLowModelConfidence  = "low_model_confidence"
	ReasonWidePriceInterval   = "wide_price_interval"
	ReasonInsufficientMargin  = "insufficient_margin_safety"
	ReasonSellerConcentration = "seller_listing_concentration"
	ReasonSuspiciousKeywords  = "suspicious_listing_keywords"
)

// RiskService scores listing risk and applies the risk gate.
type RiskService interface {
	Assess(input dto.RiskInput) dto.RiskAssessment
	ApplyGate(status entity.OpportunityStatus, risk dto.RiskAssessment) entity.OpportunityStatus
}

type riskService struct {
	cfg      config.Risk
	keywords []string
}

// NewRiskService creates a new RiskService.
func NewRiskService(cfg config.Risk) RiskService {
	return &riskService{cfg: cfg, keywords: cfg.Keywords()}
}

// Assess adds up the risk factors and clamps the total to [0,100].
func (s *riskService) Assess(in dto.RiskInput) dto.RiskAssessment {
	var score float64
	reasons := make([]string, 0, 4)
	hardBlock := false
	v := in.Valuation

	if v.BuyLimit <= 0 {
		hardBlock = true
		score += 100
		reasons = append(reasons, ReasonBuyLimitNonPositive)
	} else if in.ListPrice > v.BuyLimit {
		hardBlock = true
		score += 100
		reasons = append(reasons, ReasonListPriceAboveLimit)
	}

	if v.ComparablesCount < s.cfg.MinComparables {
		deficit := float64(s.cfg.MinComparables - v.ComparablesCount)
		score += math.Min(25, 8+deficit*3)
		reasons = append(reasons, ReasonTooFewComparables)
	}

	if v.ModelConfidence < s.cfg.MinModelConfidence {
		deficit := s.cfg.MinModelConfidence - v.ModelConfidence
		score += math.Min(25, math.Max(5, deficit*100))
		reasons = append(reasons, ReasonLowModelConfidence)
	}

	spread := (v.CIHigh - v.CILow) / math.Max(v.ExpectedSalePrice, 0.01)
	if spread > s.cfg.MaxCISpreadRatio {
		score += math.Min(20, (spread-s.cfg.MaxCISpreadRatio)*70)
		reasons = append(reasons, ReasonWidePriceInterval)
	}

	margin := -1.0
	if v.BuyLimit > 0 {
		margin = (v.BuyLimit - in.ListPrice) / v.BuyLimit
	}
	if margin < s.cfg.MinMarginRatio {
		score += math.Min(20, (s.cfg.MinMarginRatio-margin)*60)
		reasons = append(reasons, ReasonInsufficientMargin)
	}

	if s.cfg.SellerOpenListingLimit > 0 && in.SellerListingCount >= s.cfg.SellerOpenListingLimit {
		overflow := float64(in.SellerListingCount - s.cfg.SellerOpenListingLimit + 1)
		score += math.Min(18, 6+overflow*1.5)
		reasons = append(reasons, ReasonSellerConcentration)
	}

	if s.hasSuspiciousKeyword(in.Text) {
		score += s.cfg.KeywordPenalty
		reasons = append(reasons, ReasonSuspiciousKeywords)
	}

	score = utils.Round(utils.Clamp(score, 0, 100), 2)
	return dto.RiskAssessment{
		Score:     score,
		Level:     s.level(score),
		HardBlock: hardBlock,
		Reasons:   reasons,
	}
}

func (s *riskService) hasSuspiciousKeyword(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range s.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

func (s *riskService) level(score float64) string {
	switch {
	case score >= s.cfg.BlockScore:
		return dto.RiskLevelHigh
	case score >= s.cfg.ReviewScore:
		return dto.RiskLevelMedium
	}
	return dto.RiskLevelLow
}

// ApplyGate escalates to blocked_risk on a hard block or a blocking score.
func (s *riskService) ApplyGate(status entity.OpportunityStatus, risk dto.RiskAssessment) entity.OpportunityStatus {
	if risk.HardBlock || risk.Score >= s.cfg.BlockScore {
		return entity.OpportunityStatusBlockedRisk
	}
	return status
}

// FormatRiskNote renders the review note attached to an opportunity.
func FormatRiskNote(risk dto.RiskAssessment) string {
	reasons := "none"
	if len(risk.Reasons) > 0 {
		reasons = strings.Join(risk.Reasons, ",")
	}
	return fmt.Sprintf("risk_score=%s; risk_level=%s; reasons=%s", formatScore(risk.Score), risk.Level, reasons)
}

func formatScore(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
