package entity

import "time"

// Valuation is written once per analysis pass and never updated.
type Valuation struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ListingID          uint      `gorm:"not null;index" json:"listing_id"`
	ExpectedSalePrice  float64   `gorm:"not null" json:"expected_sale_price"`
	BuyLimit           float64   `gorm:"not null" json:"buy_limit"`
	SuggestedListPrice float64   `gorm:"not null" json:"suggested_list_price"`
	CILow              float64   `gorm:"column:ci_low;not null" json:"ci_low"`
	CIHigh             float64   `gorm:"column:ci_high;not null" json:"ci_high"`
	ModelConfidence    float64   `gorm:"not null" json:"model_confidence"`
	ComparablesCount   int       `gorm:"not null" json:"comparables_count"`
	Reasoning          string    `json:"reasoning"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Valuation) TableName() string {
	return "valuations"
}
