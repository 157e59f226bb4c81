package entity

import "time"

type OpportunityStatus string

const (
	OpportunityStatusPendingReview  OpportunityStatus = "pending_review"
	OpportunityStatusIgnored        OpportunityStatus = "ignored"
	OpportunityStatusBlockedRisk    OpportunityStatus = "blocked_risk"
	OpportunityStatusApprovedForBuy OpportunityStatus = "approved_for_buy"
	OpportunityStatusRejected       OpportunityStatus = "rejected"
)

// Opportunity pairs a listing with its latest valuation and review status.
// There is one row per listing; re-analysis overwrites it in place.
type Opportunity struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	ListingID      uint              `gorm:"not null;uniqueIndex" json:"listing_id"`
	ValuationID    uint              `gorm:"not null" json:"valuation_id"`
	ExpectedProfit float64           `gorm:"not null" json:"expected_profit"`
	ExpectedROI    float64           `gorm:"column:expected_roi;not null" json:"expected_roi"`
	Score          float64           `gorm:"not null;index" json:"score"`
	RiskScore      float64           `gorm:"not null" json:"risk_score"`
	RiskLevel      string            `gorm:"not null" json:"risk_level"`
	Status         OpportunityStatus `gorm:"not null;index" json:"status"`
	ReviewNote     string            `json:"review_note"`
	ReviewedAt     *time.Time        `json:"reviewed_at"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	Listing   *Listing   `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Valuation *Valuation `gorm:"foreignKey:ValuationID" json:"valuation,omitempty"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}

var opportunityTransitions = map[OpportunityStatus][]OpportunityStatus{
	OpportunityStatusPendingReview: {OpportunityStatusApprovedForBuy, OpportunityStatusRejected},
	OpportunityStatusBlockedRisk:   {OpportunityStatusPendingReview, OpportunityStatusRejected},
	OpportunityStatusIgnored:       {OpportunityStatusPendingReview, OpportunityStatusRejected},
	OpportunityStatusRejected:      {OpportunityStatusPendingReview},
}

// CanTransition reports whether a review action may move an opportunity from
// one status to another. Re-analysis bypasses this and overwrites the status.
func CanTransition(from, to OpportunityStatus) bool {
	for _, next := range opportunityTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
