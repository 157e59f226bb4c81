package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-cardflip-engine/internal/entity"

	"gorm.io/gorm"
)

// ValuationRepository stores valuations. Rows are insert-only.
type ValuationRepository interface {
	Create(ctx context.Context, valuation *entity.Valuation) error
	GetLatestByListing(ctx context.Context, listingID uint) (*entity.Valuation, error)
}

type valuationRepository struct {
	db *gorm.DB
}

// NewValuationRepository creates a new ValuationRepository.
func NewValuationRepository(db *gorm.DB) ValuationRepository {
	return &valuationRepository{db: db}
}

func (r *valuationRepository) Create(ctx context.Context, valuation *entity.Valuation) error {
	if err := r.db.WithContext(ctx).Create(valuation).Error; err != nil {
		return fmt.Errorf("failed to save valuation for listing %d: %w", valuation.ListingID, err)
	}
	return nil
}

func (r *valuationRepository) GetLatestByListing(ctx context.Context, listingID uint) (*entity.Valuation, error) {
	var valuation entity.Valuation
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("id DESC").
		First(&valuation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &valuation, nil
}
