package service

import (
	"context"
	"fmt"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"
)

const (
	defaultReviewListLimit  = 100
	defaultReviewBatchLimit = 200
)

// ReviewService drives the manual review of opportunities.
type ReviewService interface {
	List(ctx context.Context, status *entity.OpportunityStatus, limit int) ([]entity.Opportunity, error)
	Get(ctx context.Context, id uint) (*entity.Opportunity, error)
	Approve(ctx context.Context, id uint, req dto.ApproveOpportunityRequest) (*entity.Trade, error)
	Reject(ctx context.Context, id uint, note string) error
	SendToReview(ctx context.Context, id uint, note string) error
	SendToReviewBatch(ctx context.Context, maxRiskScore *float64, limit int, note string) (dto.BatchReviewResult, error)
}

type reviewService struct {
	opportunities repository.OpportunityRepository
	trades        repository.TradeRepository
	cfg           config.Risk
	log           *logger.Logger
}

// NewReviewService creates a new ReviewService.
func NewReviewService(
	opportunities repository.OpportunityRepository,
	trades repository.TradeRepository,
	cfg config.Risk,
	log *logger.Logger,
) ReviewService {
	return &reviewService{opportunities: opportunities, trades: trades, cfg: cfg, log: log}
}

func (s *reviewService) List(ctx context.Context, status *entity.OpportunityStatus, limit int) ([]entity.Opportunity, error) {
	if limit <= 0 {
		limit = defaultReviewListLimit
	}
	return s.opportunities.List(ctx, dto.ListOpportunitiesParam{Status: status, Limit: limit})
}

func (s *reviewService) Get(ctx context.Context, id uint) (*entity.Opportunity, error) {
	return s.opportunities.GetByID(ctx, id)
}

// Approve creates a trade for a pending opportunity. The target sell price is
// the valuation's suggested list price and the buy price defaults to the
// listing price.
func (s *reviewService) Approve(ctx context.Context, id uint, req dto.ApproveOpportunityRequest) (*entity.Trade, error) {
	opp, err := s.opportunities.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp.Status != entity.OpportunityStatusPendingReview {
		return nil, fmt.Errorf("%w: opportunity %d is %s, not pending_review", repository.ErrInvalidTransition, id, opp.Status)
	}
	if opp.Valuation == nil || opp.Listing == nil {
		return nil, fmt.Errorf("opportunity %d is missing its listing or valuation", id)
	}

	buyPrice := opp.Listing.Price
	if req.ApprovedBuyPrice != nil {
		buyPrice = *req.ApprovedBuyPrice
	}
	if buyPrice <= 0 {
		return nil, fmt.Errorf("%w: approved buy price must be positive", repository.ErrInvalidInput)
	}

	trade := &entity.Trade{
		OpportunityID:    opp.ID,
		Status:           entity.TradeStatusApprovedForBuy,
		ApprovedBuyPrice: buyPrice,
		TargetSellPrice:  utils.ToPointer(opp.Valuation.SuggestedListPrice),
		ApprovedBy:       req.ApprovedBy,
		Note:             req.Note,
	}
	if err := s.trades.CreateApproved(ctx, trade, req.Note); err != nil {
		return nil, err
	}

	s.log.Info("Opportunity approved",
		logger.IntField("opportunity_id", int(opp.ID)),
		logger.IntField("trade_id", int(trade.ID)),
		logger.Float64Field("buy_price", buyPrice))
	return trade, nil
}

func (s *reviewService) Reject(ctx context.Context, id uint, note string) error {
	if note == "" {
		note = "manual reject"
	}
	return s.transition(ctx, id, entity.OpportunityStatusRejected, note)
}

// SendToReview moves a blocked opportunity back to pending_review.
func (s *reviewService) SendToReview(ctx context.Context, id uint, note string) error {
	opp, err := s.opportunities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if opp.Status != entity.OpportunityStatusBlockedRisk {
		return fmt.Errorf("%w: opportunity %d is %s, not blocked_risk", repository.ErrInvalidTransition, id, opp.Status)
	}
	if note == "" {
		note = "manual review override"
	}
	return s.opportunities.UpdateStatus(ctx, id, entity.OpportunityStatusPendingReview, note)
}

// SendToReviewBatch moves every blocked opportunity whose risk score is at
// most maxRiskScore back to pending_review.
func (s *reviewService) SendToReviewBatch(ctx context.Context, maxRiskScore *float64, limit int, note string) (dto.BatchReviewResult, error) {
	threshold := s.cfg.SendToReviewMaxScore
	if maxRiskScore != nil {
		threshold = utils.Clamp(*maxRiskScore, 0, 100)
	}
	if limit <= 0 {
		limit = defaultReviewBatchLimit
	}
	if note == "" {
		note = "manual batch review override"
	}

	rows, err := s.opportunities.ListBlocked(ctx, threshold, limit)
	if err != nil {
		return dto.BatchReviewResult{}, err
	}

	result := dto.BatchReviewResult{Scanned: len(rows), IDs: make([]uint, 0, len(rows))}
	for _, opp := range rows {
		if err := s.opportunities.UpdateStatus(ctx, opp.ID, entity.OpportunityStatusPendingReview, note); err != nil {
			return result, err
		}
		result.Moved++
		result.IDs = append(result.IDs, opp.ID)
	}
	return result, nil
}

func (s *reviewService) transition(ctx context.Context, id uint, to entity.OpportunityStatus, note string) error {
	opp, err := s.opportunities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !entity.CanTransition(opp.Status, to) {
		return fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, opp.Status, to)
	}
	return s.opportunities.UpdateStatus(ctx, id, to, note)
}
