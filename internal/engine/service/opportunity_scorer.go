package service

import (
	"math"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/utils"
)

// OpportunityScorer computes profit, ROI and the composite priority score.
type OpportunityScorer interface {
	Score(listPrice, expectedSalePrice, riskScore float64) dto.OpportunityScore
}

type opportunityScorer struct {
	cfg config.Trading
}

// NewOpportunityScorer creates a new OpportunityScorer.
func NewOpportunityScorer(cfg config.Trading) OpportunityScorer {
	return &opportunityScorer{cfg: cfg}
}

// Score applies the profit gate. The risk gate runs separately afterwards.
func (s *opportunityScorer) Score(listPrice, expected, riskScore float64) dto.OpportunityScore {
	fee := s.cfg.PlatformFeeRate * expected
	riskCut := s.cfg.RiskDiscount * expected
	net := expected - listPrice - s.cfg.ShippingCost - fee - riskCut

	roi := 0.0
	if listPrice > 0 {
		roi = net / listPrice
	}

	penalty := math.Min(40, math.Max(0, riskScore)*0.35)
	score := utils.Round(utils.Clamp(roi*100+net/10-penalty, 0, 100), 2)

	status := entity.OpportunityStatusPendingReview
	if net < s.cfg.MinProfit || roi < s.cfg.MinROI {
		status = entity.OpportunityStatusIgnored
	}

	return dto.OpportunityScore{
		NetProfit: utils.Round(net, 2),
		ROI:       utils.Round(roi, 4),
		Score:     score,
		Status:    status,
	}
}
