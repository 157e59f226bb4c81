package entity

import "time"

type TradeStatus string

const (
	TradeStatusApprovedForBuy TradeStatus = "approved_for_buy"
	TradeStatusListedForSale  TradeStatus = "listed_for_sale"
	TradeStatusSold           TradeStatus = "sold"
)

// Trade follows an approved opportunity through purchase, relisting and sale.
type Trade struct {
	ID               uint        `gorm:"primaryKey" json:"id"`
	OpportunityID    uint        `gorm:"not null;index" json:"opportunity_id"`
	Status           TradeStatus `gorm:"not null;index" json:"status"`
	ApprovedBuyPrice float64     `gorm:"not null" json:"approved_buy_price"`
	TargetSellPrice  *float64    `json:"target_sell_price"`
	SoldPrice        *float64    `json:"sold_price"`
	ListingURL       string      `json:"listing_url"`
	ApprovedBy       string      `json:"approved_by"`
	Note             string      `json:"note"`
	ListedAt         *time.Time  `json:"listed_at"`
	SoldAt           *time.Time  `json:"sold_at"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`

	Opportunity *Opportunity `gorm:"foreignKey:OpportunityID" json:"opportunity,omitempty"`
}

func (Trade) TableName() string {
	return "trades"
}

// IsActive reports whether the trade still holds inventory.
func (t Trade) IsActive() bool {
	return t.Status == TradeStatusApprovedForBuy || t.Status == TradeStatusListedForSale
}
