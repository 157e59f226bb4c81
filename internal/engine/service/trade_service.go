package service

import (
	"context"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"
)

const (
	maxTitleKeywords     = 4
	minTitleKeywordLen   = 3
	defaultTradeListSize = 100
)

// TradeService manages approved trades through relisting and sale.
type TradeService interface {
	List(ctx context.Context, status *entity.TradeStatus, limit int) ([]entity.Trade, error)
	Get(ctx context.Context, id uint) (*entity.Trade, error)
	PricingPlan(ctx context.Context, tradeID uint, mode dto.PricingMode) (*dto.PricingPlan, error)
	ApplyPricingPlan(ctx context.Context, tradeID uint, mode dto.PricingMode, note string) (*dto.PricingPlan, bool, error)
	RepriceOpen(ctx context.Context, mode dto.PricingMode, limit int, apply bool) (dto.RepriceResult, error)
	MarkListed(ctx context.Context, id uint, listingURL, note string) error
	MarkSold(ctx context.Context, id uint, soldPrice float64, note string) error
	Metrics(ctx context.Context) (*dto.TradeMetrics, error)
}

type tradeService struct {
	trades  repository.TradeRepository
	planner PricingPlanner
	cfg     config.Pricing
	log     *logger.Logger
	now     func() time.Time
}

// NewTradeService creates a new TradeService.
func NewTradeService(trades repository.TradeRepository, planner PricingPlanner, cfg config.Pricing, log *logger.Logger) TradeService {
	return &tradeService{trades: trades, planner: planner, cfg: cfg, log: log, now: time.Now}
}

func (s *tradeService) List(ctx context.Context, status *entity.TradeStatus, limit int) ([]entity.Trade, error) {
	if limit <= 0 {
		limit = defaultTradeListSize
	}
	return s.trades.List(ctx, status, limit)
}

func (s *tradeService) Get(ctx context.Context, id uint) (*entity.Trade, error) {
	return s.trades.GetByID(ctx, id)
}

// PricingPlan builds a reprice recommendation for one trade.
func (s *tradeService) PricingPlan(ctx context.Context, tradeID uint, mode dto.PricingMode) (*dto.PricingPlan, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	return s.plan(ctx, trade, mode)
}

// ApplyPricingPlan stores the recommended target price when the plan's action
// is set, raise or lower. It reports whether the target changed.
func (s *tradeService) ApplyPricingPlan(ctx context.Context, tradeID uint, mode dto.PricingMode, note string) (*dto.PricingPlan, bool, error) {
	plan, err := s.PricingPlan(ctx, tradeID, mode)
	if err != nil {
		return nil, false, err
	}
	if !plan.ShouldApply() {
		return plan, false, nil
	}
	if note == "" {
		note = "auto pricing plan"
	}
	if err := s.trades.UpdateTargetPrice(ctx, tradeID, plan.RecommendedPrice, repriceNote(note, plan)); err != nil {
		return nil, false, err
	}
	return plan, true, nil
}

// RepriceOpen plans every open trade and optionally applies the changes.
// A trade that cannot be planned is reported and skipped.
func (s *tradeService) RepriceOpen(ctx context.Context, mode dto.PricingMode, limit int, apply bool) (dto.RepriceResult, error) {
	mode, _ = dto.ParsePricingMode(string(mode))
	result := dto.RepriceResult{Mode: mode, Plans: []dto.PricingPlan{}}
	if limit <= 0 {
		limit = defaultTradeListSize
	}

	trades, err := s.trades.ListOpen(ctx, limit)
	if err != nil {
		return result, err
	}

	for i := range trades {
		trade := &trades[i]
		plan, err := s.plan(ctx, trade, mode)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("trade %d: %v", trade.ID, err))
			continue
		}
		if apply && plan.ShouldApply() {
			if err := s.trades.UpdateTargetPrice(ctx, trade.ID, plan.RecommendedPrice, repriceNote("batch auto pricing plan", plan)); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("trade %d: %v", trade.ID, err))
				continue
			}
			result.Applied++
		}
		result.Plans = append(result.Plans, *plan)
	}

	s.log.Info("Open trades repriced",
		logger.StringField("mode", string(mode)),
		logger.IntField("planned", len(result.Plans)),
		logger.IntField("applied", result.Applied))
	return result, nil
}

func (s *tradeService) MarkListed(ctx context.Context, id uint, listingURL, note string) error {
	trade, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if trade.Status != entity.TradeStatusApprovedForBuy && trade.Status != entity.TradeStatusListedForSale {
		return fmt.Errorf("%w: trade %d is %s", repository.ErrInvalidTransition, id, trade.Status)
	}
	return s.trades.MarkListed(ctx, id, listingURL, note)
}

func (s *tradeService) MarkSold(ctx context.Context, id uint, soldPrice float64, note string) error {
	if soldPrice <= 0 {
		return fmt.Errorf("%w: sold price must be positive", repository.ErrInvalidInput)
	}
	trade, err := s.trades.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !trade.IsActive() {
		return fmt.Errorf("%w: trade %d is already %s", repository.ErrInvalidTransition, id, trade.Status)
	}
	return s.trades.MarkSold(ctx, id, soldPrice, note)
}

func (s *tradeService) Metrics(ctx context.Context) (*dto.TradeMetrics, error) {
	m, err := s.trades.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	m.GrossProfit = utils.Round(m.GrossProfit, 2)
	return m, nil
}

func (s *tradeService) plan(ctx context.Context, trade *entity.Trade, mode dto.PricingMode) (*dto.PricingPlan, error) {
	if trade.Opportunity == nil || trade.Opportunity.Valuation == nil || trade.Opportunity.Listing == nil {
		return nil, fmt.Errorf("trade %d is missing its opportunity context", trade.ID)
	}
	valuation := trade.Opportunity.Valuation

	similar, err := s.similarPrices(ctx, trade.Opportunity.Listing.Title)
	if err != nil {
		return nil, err
	}
	active, err := s.trades.CountActive(ctx)
	if err != nil {
		return nil, err
	}

	plan := s.planner.Plan(dto.PricingInput{
		Mode:               mode,
		ApprovedBuyPrice:   trade.ApprovedBuyPrice,
		CurrentTarget:      trade.TargetSellPrice,
		ExpectedSalePrice:  valuation.ExpectedSalePrice,
		SuggestedListPrice: valuation.SuggestedListPrice,
		CILow:              valuation.CILow,
		CIHigh:             valuation.CIHigh,
		HoldingDays:        utils.ElapsedDays(trade.CreatedAt, s.now()),
		ActiveTrades:       active,
		SimilarPrices:      similar,
	})
	plan.TradeID = trade.ID
	return &plan, nil
}

// similarPrices returns the sold prices for the first title keyword that has any.
func (s *tradeService) similarPrices(ctx context.Context, title string) ([]float64, error) {
	for _, kw := range TitleKeywords(title) {
		prices, err := s.trades.RecentSoldPricesByTitleKeyword(ctx, kw, s.cfg.ComparableLimit)
		if err != nil {
			return nil, err
		}
		if len(prices) > 0 {
			return prices, nil
		}
	}
	return nil, nil
}

// TitleKeywords returns up to four distinct lowercase title tokens of at
// least three characters, in title order.
func TitleKeywords(title string) []string {
	var out []string
	for _, token := range utils.Tokens(title) {
		if len([]rune(token)) < minTitleKeywordLen || utils.ContainsString(out, token) {
			continue
		}
		out = append(out, token)
		if len(out) == maxTitleKeywords {
			break
		}
	}
	return out
}

func repriceNote(note string, plan *dto.PricingPlan) string {
	return fmt.Sprintf("%s; mode=%s; action=%s", note, plan.Mode, plan.Action)
}
