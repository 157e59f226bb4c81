package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"

	"gorm.io/gorm"
)

var activeTradeStatuses = []entity.TradeStatus{entity.TradeStatusApprovedForBuy, entity.TradeStatusListedForSale}

// TradeRepository stores trades created from approved opportunities.
type TradeRepository interface {
	Create(ctx context.Context, trade *entity.Trade) error
	CreateApproved(ctx context.Context, trade *entity.Trade, note string) error
	GetByID(ctx context.Context, id uint) (*entity.Trade, error)
	List(ctx context.Context, status *entity.TradeStatus, limit int) ([]entity.Trade, error)
	ListOpen(ctx context.Context, limit int) ([]entity.Trade, error)
	CountActive(ctx context.Context) (int, error)
	UpdateTargetPrice(ctx context.Context, id uint, price float64, note string) error
	MarkListed(ctx context.Context, id uint, listingURL, note string) error
	MarkSold(ctx context.Context, id uint, soldPrice float64, note string) error
	RecentSoldPricesByTitleKeyword(ctx context.Context, keyword string, limit int) ([]float64, error)
	Metrics(ctx context.Context) (*dto.TradeMetrics, error)
}

type tradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Create(ctx context.Context, trade *entity.Trade) error {
	if err := r.db.WithContext(ctx).Omit("Opportunity").Create(trade).Error; err != nil {
		return fmt.Errorf("failed to create trade for opportunity %d: %w", trade.OpportunityID, err)
	}
	return nil
}

// CreateApproved inserts trade and moves its opportunity from pending_review
// to approved_for_buy in one transaction.
func (r *tradeRepository) CreateApproved(ctx context.Context, trade *entity.Trade, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Opportunity{}).
			Where("id = ? AND status = ?", trade.OpportunityID, entity.OpportunityStatusPendingReview).
			Updates(map[string]interface{}{
				"status":      entity.OpportunityStatusApprovedForBuy,
				"review_note": note,
				"reviewed_at": time.Now(),
			})
		if result.Error != nil {
			return fmt.Errorf("failed to approve opportunity %d: %w", trade.OpportunityID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: opportunity %d is not pending_review", ErrInvalidTransition, trade.OpportunityID)
		}
		if err := tx.Omit("Opportunity").Create(trade).Error; err != nil {
			return fmt.Errorf("failed to create trade for opportunity %d: %w", trade.OpportunityID, err)
		}
		return nil
	})
}

// GetByID loads a trade together with its opportunity, listing and valuation.
func (r *tradeRepository) GetByID(ctx context.Context, id uint) (*entity.Trade, error) {
	var trade entity.Trade
	err := r.db.WithContext(ctx).
		Preload("Opportunity.Listing").
		Preload("Opportunity.Valuation").
		First(&trade, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trade, nil
}

func (r *tradeRepository) List(ctx context.Context, status *entity.TradeStatus, limit int) ([]entity.Trade, error) {
	var trades []entity.Trade
	q := r.db.WithContext(ctx).Preload("Opportunity.Listing")
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	if err := q.Order("updated_at DESC").Limit(limit).Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *tradeRepository) ListOpen(ctx context.Context, limit int) ([]entity.Trade, error) {
	var trades []entity.Trade
	err := r.db.WithContext(ctx).
		Where("status IN ?", activeTradeStatuses).
		Order("updated_at DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

func (r *tradeRepository) CountActive(ctx context.Context) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Trade{}).
		Where("status IN ?", activeTradeStatuses).
		Count(&count).Error
	return int(count), err
}

func (r *tradeRepository) UpdateTargetPrice(ctx context.Context, id uint, price float64, note string) error {
	return r.update(ctx, id, map[string]interface{}{
		"target_sell_price": price,
		"note":              appendNote(note),
	})
}

func (r *tradeRepository) MarkListed(ctx context.Context, id uint, listingURL, note string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":      entity.TradeStatusListedForSale,
		"listing_url": listingURL,
		"listed_at":   time.Now(),
		"note":        appendNote(note),
	})
}

func (r *tradeRepository) MarkSold(ctx context.Context, id uint, soldPrice float64, note string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status":     entity.TradeStatusSold,
		"sold_price": soldPrice,
		"sold_at":    time.Now(),
		"note":       appendNote(note),
	})
}

// RecentSoldPricesByTitleKeyword returns sold prices of trades whose listing
// title contains keyword, newest first.
func (r *tradeRepository) RecentSoldPricesByTitleKeyword(ctx context.Context, keyword string, limit int) ([]float64, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}

	var prices []float64
	err := r.db.WithContext(ctx).
		Table("trades AS t").
		Joins("JOIN opportunities o ON o.id = t.opportunity_id").
		Joins("JOIN listings l ON l.id = o.listing_id").
		Where("t.status = ? AND t.sold_price IS NOT NULL", entity.TradeStatusSold).
		Where("l.title ILIKE ?", "%"+keyword+"%").
		Order("t.updated_at DESC").
		Limit(limit).
		Pluck("t.sold_price", &prices).Error
	if err != nil {
		return nil, err
	}
	return prices, nil
}

func (r *tradeRepository) Metrics(ctx context.Context) (*dto.TradeMetrics, error) {
	var metrics dto.TradeMetrics

	db := r.db.WithContext(ctx)
	if err := db.Model(&entity.Opportunity{}).
		Where("status = ?", entity.OpportunityStatusPendingReview).
		Count(&metrics.PendingReview).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&entity.Trade{}).
		Where("status IN ?", activeTradeStatuses).
		Count(&metrics.ActiveTrades).Error; err != nil {
		return nil, err
	}

	var sold struct {
		Count       int64
		GrossProfit float64
	}
	err := db.Model(&entity.Trade{}).
		Select("COUNT(*) AS count, COALESCE(SUM(sold_price - approved_buy_price), 0) AS gross_profit").
		Where("status = ?", entity.TradeStatusSold).
		Scan(&sold).Error
	if err != nil {
		return nil, err
	}
	metrics.SoldTrades = sold.Count
	metrics.GrossProfit = sold.GrossProfit
	return &metrics, nil
}

func (r *tradeRepository) update(ctx context.Context, id uint, values map[string]interface{}) error {
	values["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).Model(&entity.Trade{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return fmt.Errorf("failed to update trade %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// appendNote joins a new note onto the stored one with "; ". An empty note
// leaves the column unchanged.
func appendNote(note string) interface{} {
	return gorm.Expr("CASE WHEN ? = '' THEN note WHEN note = '' THEN ? ELSE note || '; ' || ? END", note, note, note)
}
