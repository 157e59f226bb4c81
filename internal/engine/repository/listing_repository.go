package repository

import (
	"context"
	"errors"
	"fmt"

	"golang-cardflip-engine/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingRepository stores scraped listings.
type ListingRepository interface {
	InsertListings(ctx context.Context, listings []entity.Listing) (int, error)
	InsertIfAbsent(ctx context.Context, listing *entity.Listing) (bool, error)
	GetByID(ctx context.Context, id uint) (*entity.Listing, error)
	GetOpenListings(ctx context.Context, limit int) ([]entity.Listing, error)
	CountSellerOpenListings(ctx context.Context, source, sellerID string, excludeID uint) (int, error)
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new ListingRepository.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// InsertListings inserts the listings whose (source, external_id) is neither
// stored yet nor repeated earlier in the batch. Listings without an external
// id are always inserted.
func (r *listingRepository) InsertListings(ctx context.Context, listings []entity.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	existing, err := r.existingKeys(ctx, listings)
	if err != nil {
		return 0, err
	}

	fresh := dedupListings(listings, existing)
	if len(fresh) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&fresh, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to insert listings: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// InsertIfAbsent inserts one listing and reports whether it was new. On
// success listing.ID holds the new row id.
func (r *listingRepository) InsertIfAbsent(ctx context.Context, listing *entity.Listing) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(listing)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert listing: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *listingRepository) GetByID(ctx context.Context, id uint) (*entity.Listing, error) {
	var listing entity.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &listing, nil
}

func (r *listingRepository) GetOpenListings(ctx context.Context, limit int) ([]entity.Listing, error) {
	var listings []entity.Listing
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.ListingStatusOpen).
		Order("listed_at DESC").
		Limit(limit).
		Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// CountSellerOpenListings counts a seller's open listings on a source,
// leaving out excludeID when it is non-zero.
func (r *listingRepository) CountSellerOpenListings(ctx context.Context, source, sellerID string, excludeID uint) (int, error) {
	if sellerID == "" {
		return 0, nil
	}

	var count int64
	q := r.db.WithContext(ctx).Model(&entity.Listing{}).
		Where("source = ? AND seller_id = ? AND status = ?", source, sellerID, entity.ListingStatusOpen)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *listingRepository) existingKeys(ctx context.Context, listings []entity.Listing) (map[string]struct{}, error) {
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		if _, ok := l.DedupKey(); ok {
			ids = append(ids, *l.ExternalID)
		}
	}
	existing := make(map[string]struct{})
	if len(ids) == 0 {
		return existing, nil
	}

	var rows []entity.Listing
	err := r.db.WithContext(ctx).
		Select("source", "external_id").
		Where("external_id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load existing listings: %w", err)
	}
	for _, row := range rows {
		if key, ok := row.DedupKey(); ok {
			existing[key] = struct{}{}
		}
	}
	return existing, nil
}

// dedupListings drops listings already present in existing and repeats
// within the batch, keeping the first occurrence.
func dedupListings(listings []entity.Listing, existing map[string]struct{}) []entity.Listing {
	seen := make(map[string]struct{}, len(listings))
	out := make([]entity.Listing, 0, len(listings))
	for _, l := range listings {
		if key, ok := l.DedupKey(); ok {
			if _, dup := existing[key]; dup {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, l)
	}
	return out
}
