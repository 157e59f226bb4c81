package repository

import (
	"context"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/common"

	"gorm.io/gorm"
)

// SaleRepository reads comparable sales. Sales are never written by the engine.
type SaleRepository interface {
	GetRecentSales(ctx context.Context, features dto.Features, limit int) ([]entity.Sale, error)
}

type saleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new SaleRepository.
func NewSaleRepository(db *gorm.DB) SaleRepository {
	return &saleRepository{db: db}
}

// GetRecentSales returns the newest sales matching the card name, narrowed by
// rarity and edition when those are known.
func (r *saleRepository) GetRecentSales(ctx context.Context, features dto.Features, limit int) ([]entity.Sale, error) {
	var sales []entity.Sale
	err := r.db.WithContext(ctx).
		Table("sales AS s").
		Select("s.*").
		Joins("LEFT JOIN item_features f ON f.ref_type = ? AND f.ref_id = s.id", common.RefTypeSale).
		Where("(f.card_name = ? OR s.title ILIKE ?)", features.CardName, "%"+features.CardName+"%").
		Where("(? = ? OR f.rarity = ? OR f.rarity IS NULL)", features.Rarity, dto.UnknownValue, features.Rarity).
		Where("(? = ? OR f.edition = ? OR f.edition IS NULL)", features.Edition, dto.UnknownValue, features.Edition).
		Order("s.sold_at DESC").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

// SalePrices extracts the price column.
func SalePrices(sales []entity.Sale) []float64 {
	prices := make([]float64, 0, len(sales))
	for _, s := range sales {
		prices = append(prices, s.Price)
	}
	return prices
}
