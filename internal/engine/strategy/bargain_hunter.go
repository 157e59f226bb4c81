package strategy

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
)

// BargainHunter flags analysed listings that clear the profile thresholds and
// buys the ones already pending review on paper.
type BargainHunter struct {
	base
	store OpportunityStore
}

// NewBargainHunter creates a stopped BargainHunter with the given thresholds.
func NewBargainHunter(name string, store OpportunityStore, publisher Publisher, log *logger.Logger) *BargainHunter {
	return &BargainHunter{base: newBase(name, publisher, log), store: store}
}

// ShouldReview applies the profile to an analysis. A hard block is never
// reviewed; a risk-blocked item needs AllowBlockedReview and ignores the
// risk ceiling.
func ShouldReview(a dto.Analysis, p config.Profile) bool {
	switch {
	case a.Risk.HardBlock:
		return false
	case a.Status == entity.OpportunityStatusBlockedRisk:
		return p.AllowBlockedReview && a.Profit.Score >= p.MinScore && a.Profit.ROI >= p.MinROI
	}
	return a.Profit.Score >= p.MinScore && a.Risk.Score <= p.MaxRiskScore && a.Profit.ROI >= p.MinROI
}

// OnItemAnalyzed syncs the opportunity status with the decision and submits an
// order for qualifying items that are pending review.
func (s *BargainHunter) OnItemAnalyzed(ctx context.Context, evt event.Event) error {
	if !s.Active() {
		return nil
	}
	payload, ok := evt.Payload.(event.ItemAnalyzed)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	a := payload.Analysis
	profile := s.thresholds()
	review := ShouldReview(a, profile)

	sell := a.Valuation.SuggestedListPrice
	if a.ListingID == 0 || a.ListPrice <= 0 || sell <= 0 {
		return nil
	}

	if err := s.syncOpportunity(ctx, a, review, profile); err != nil {
		return err
	}

	if !review || a.Status != entity.OpportunityStatusPendingReview {
		return nil
	}

	buy := a.ListPrice
	if a.Valuation.BuyLimit > 0 {
		buy = math.Min(a.ListPrice, a.Valuation.BuyLimit)
	}
	_, err := s.sendOrder(a.ListingID, a.OpportunityID, buy, sell)
	return err
}

// OnOrderTraded logs fills of this strategy's own orders.
func (s *BargainHunter) OnOrderTraded(ctx context.Context, evt event.Event) error {
	traded, ok := evt.Payload.(event.OrderTraded)
	if !ok || traded.Order.StrategyName != s.name {
		return nil
	}
	s.log.Info("Order filled",
		logger.StringField("strategy", s.name),
		logger.StringField("order_id", traded.Order.ID),
		logger.Float64Field("buy_price", traded.Order.BuyPrice),
		logger.Float64Field("sell_price", traded.Order.SellPrice))
	return nil
}

// syncOpportunity promotes qualifying opportunities to pending_review and,
// when configured, rejects pending ones that no longer qualify. Approved
// opportunities are left alone.
func (s *BargainHunter) syncOpportunity(ctx context.Context, a dto.Analysis, review bool, profile config.Profile) error {
	opp, err := s.store.GetByListingID(ctx, a.ListingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}

	decision := "ignore"
	if review {
		decision = "review"
	}
	note := fmt.Sprintf("strategy=%s; decision=%s; status=%s; hard_block=%t; score=%.1f; roi=%.3f; risk_score=%.1f",
		s.name, decision, opp.Status, a.Risk.HardBlock, a.Profit.Score, a.Profit.ROI, a.Risk.Score)

	switch {
	case opp.Status == entity.OpportunityStatusApprovedForBuy:
		return nil
	case review && opp.Status != entity.OpportunityStatusPendingReview:
		return s.store.UpdateStatus(ctx, opp.ID, entity.OpportunityStatusPendingReview, note)
	case !review && profile.AutoRejectUnqualified && opp.Status == entity.OpportunityStatusPendingReview:
		return s.store.UpdateStatus(ctx, opp.ID, entity.OpportunityStatusRejected, note)
	}
	return nil
}
