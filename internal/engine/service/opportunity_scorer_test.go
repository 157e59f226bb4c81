package service

import (
	"testing"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/entity"

	"github.com/stretchr/testify/assert"
)

func TestScoreProfitableListing(t *testing.T) {
	s := NewOpportunityScorer(config.Default().Trading)

	// net = 200 - 100 - 8 - 12 - 10 = 70, roi = 0.7, score = 70 + 7 - 3.5
	got := s.Score(100, 200, 10)

	assert.Equal(t, 70.0, got.NetProfit)
	assert.Equal(t, 0.7, got.ROI)
	assert.Equal(t, 73.5, got.Score)
	assert.Equal(t, entity.OpportunityStatusPendingReview, got.Status)
}

func TestScoreBelowMinimumsIsIgnored(t *testing.T) {
	s := NewOpportunityScorer(config.Default().Trading)

	got := s.Score(100, 100, 0)
	assert.Equal(t, entity.OpportunityStatusIgnored, got.Status)
	assert.Equal(t, 0.0, got.Score, "negative composite scores clamp to zero")
}

func TestScoreRiskPenaltyIsCapped(t *testing.T) {
	s := NewOpportunityScorer(config.Default().Trading)
	low := s.Score(100, 170, 0)
	high := s.Score(100, 170, 1000)
	assert.InDelta(t, 40.0, low.Score-high.Score, 1e-9)
}

func TestScoreZeroPriceHasZeroROI(t *testing.T) {
	s := NewOpportunityScorer(config.Default().Trading)
	got := s.Score(0, 100, 0)
	assert.Equal(t, 0.0, got.ROI)
	assert.Equal(t, entity.OpportunityStatusIgnored, got.Status)
}
