package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OpportunityRepository stores one opportunity per listing.
type OpportunityRepository interface {
	Upsert(ctx context.Context, opportunity *entity.Opportunity) (uint, error)
	GetByID(ctx context.Context, id uint) (*entity.Opportunity, error)
	GetByListingID(ctx context.Context, listingID uint) (*entity.Opportunity, error)
	List(ctx context.Context, param dto.ListOpportunitiesParam) ([]entity.Opportunity, error)
	ListBlocked(ctx context.Context, maxRiskScore float64, limit int) ([]entity.Opportunity, error)
	UpdateStatus(ctx context.Context, id uint, status entity.OpportunityStatus, note string) error
	CountByStatus(ctx context.Context, status entity.OpportunityStatus) (int64, error)
}

type opportunityRepository struct {
	db *gorm.DB
}

// NewOpportunityRepository creates a new OpportunityRepository.
func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

// Upsert writes the opportunity keyed by listing id. An existing row is
// overwritten in place and its review timestamp cleared.
func (r *opportunityRepository) Upsert(ctx context.Context, opportunity *entity.Opportunity) (uint, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"valuation_id":    opportunity.ValuationID,
			"expected_profit": opportunity.ExpectedProfit,
			"expected_roi":    opportunity.ExpectedROI,
			"score":           opportunity.Score,
			"risk_score":      opportunity.RiskScore,
			"risk_level":      opportunity.RiskLevel,
			"status":          opportunity.Status,
			"review_note":     opportunity.ReviewNote,
			"reviewed_at":     nil,
			"updated_at":      time.Now(),
		}),
	}).Omit("Listing", "Valuation").Create(opportunity).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert opportunity for listing %d: %w", opportunity.ListingID, err)
	}

	var id uint
	err = r.db.WithContext(ctx).Model(&entity.Opportunity{}).
		Where("listing_id = ?", opportunity.ListingID).
		Pluck("id", &id).Error
	if err != nil {
		return 0, err
	}
	opportunity.ID = id
	return id, nil
}

func (r *opportunityRepository) GetByID(ctx context.Context, id uint) (*entity.Opportunity, error) {
	var opportunity entity.Opportunity
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Valuation").
		First(&opportunity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &opportunity, nil
}

func (r *opportunityRepository) GetByListingID(ctx context.Context, listingID uint) (*entity.Opportunity, error) {
	var opportunity entity.Opportunity
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		First(&opportunity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &opportunity, nil
}

func (r *opportunityRepository) List(ctx context.Context, param dto.ListOpportunitiesParam) ([]entity.Opportunity, error) {
	var opportunities []entity.Opportunity

	q := r.db.WithContext(ctx).Preload("Listing").Preload("Valuation")
	if param.Status != nil {
		q = q.Where("status = ?", *param.Status)
	}
	if err := q.Order("score DESC").Limit(param.Limit).Find(&opportunities).Error; err != nil {
		return nil, err
	}
	return opportunities, nil
}

// ListBlocked returns blocked opportunities at or below maxRiskScore, lowest
// risk first.
func (r *opportunityRepository) ListBlocked(ctx context.Context, maxRiskScore float64, limit int) ([]entity.Opportunity, error) {
	var opportunities []entity.Opportunity
	err := r.db.WithContext(ctx).
		Where("status = ? AND risk_score <= ?", entity.OpportunityStatusBlockedRisk, maxRiskScore).
		Order("risk_score ASC, score DESC").
		Limit(limit).
		Find(&opportunities).Error
	if err != nil {
		return nil, err
	}
	return opportunities, nil
}

func (r *opportunityRepository) UpdateStatus(ctx context.Context, id uint, status entity.OpportunityStatus, note string) error {
	result := r.db.WithContext(ctx).Model(&entity.Opportunity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"review_note": note,
			"reviewed_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *opportunityRepository) CountByStatus(ctx context.Context, status entity.OpportunityStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Opportunity{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}
