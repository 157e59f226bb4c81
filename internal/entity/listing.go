package entity

import (
	"time"

	"gorm.io/datatypes"
)

type ListingStatus string

const (
	ListingStatusOpen   ListingStatus = "open"
	ListingStatusSold   ListingStatus = "sold"
	ListingStatusClosed ListingStatus = "closed"
)

// Listing is a marketplace offer scraped from the source. (source, external_id)
// is unique whenever external_id is present.
type Listing struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Source      string         `gorm:"not null;uniqueIndex:uq_listings_source_external_id" json:"source"`
	ExternalID  *string        `gorm:"uniqueIndex:uq_listings_source_external_id" json:"external_id"`
	SellerID    *string        `gorm:"index" json:"seller_id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `json:"description"`
	Price       float64        `gorm:"not null" json:"price"`
	ListedAt    time.Time      `gorm:"not null" json:"listed_at"`
	Status      ListingStatus  `gorm:"not null;default:open" json:"status"`
	RawPayload  datatypes.JSON `gorm:"type:jsonb" json:"raw_payload"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Listing) TableName() string {
	return "listings"
}

// DedupKey identifies a listing within its source. ok is false when the
// listing carries no external id and can never be deduplicated.
func (l Listing) DedupKey() (key string, ok bool) {
	if l.ExternalID == nil || *l.ExternalID == "" {
		return "", false
	}
	return l.Source + "\x00" + *l.ExternalID, true
}
