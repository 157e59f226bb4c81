package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-cardflip-engine/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemFeatureRepository persists extracted card attributes.
type ItemFeatureRepository interface {
	Get(ctx context.Context, refType string, refID uint) (*entity.ItemFeature, error)
	Save(ctx context.Context, feature *entity.ItemFeature) error
}

type itemFeatureRepository struct {
	db *gorm.DB
}

// NewItemFeatureRepository creates a new ItemFeatureRepository.
func NewItemFeatureRepository(db *gorm.DB) ItemFeatureRepository {
	return &itemFeatureRepository{db: db}
}

func (r *itemFeatureRepository) Get(ctx context.Context, refType string, refID uint) (*entity.ItemFeature, error) {
	var feature entity.ItemFeature
	err := r.db.WithContext(ctx).
		Where("ref_type = ? AND ref_id = ?", refType, refID).
		First(&feature).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &feature, nil
}

// Save upserts on (ref_type, ref_id); the latest extraction wins.
func (r *itemFeatureRepository) Save(ctx context.Context, feature *entity.ItemFeature) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ref_type"}, {Name: "ref_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"card_name", "rarity", "edition", "condition", "confidence", "method", "extras", "updated_at",
		}),
	}).Create(feature).Error
	if err != nil {
		return fmt.Errorf("failed to save features for %s %d: %w", feature.RefType, feature.RefID, err)
	}
	return nil
}
