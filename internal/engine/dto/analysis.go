package dto

import "golang-cardflip-engine/internal/entity"

// Analysis is the full result of analysing one listing.
type Analysis struct {
	ListingID     uint                     `json:"listing_id"`
	OpportunityID uint                     `json:"opportunity_id"`
	ValuationID   uint                     `json:"valuation_id"`
	Title         string                   `json:"title"`
	ListPrice     float64                  `json:"list_price"`
	SellerID      string                   `json:"seller_id,omitempty"`
	Features      Features                 `json:"features"`
	Valuation     ValuationResult          `json:"valuation"`
	Risk          RiskAssessment           `json:"risk"`
	Profit        OpportunityScore         `json:"profit"`
	Status        entity.OpportunityStatus `json:"status"`
	ShouldBuy     bool                     `json:"should_buy"`
}

// AnalyzeOpenResult counts the outcome of a batch analysis pass.
type AnalyzeOpenResult struct {
	Processed     int `json:"processed"`
	PendingReview int `json:"pending_review"`
	BlockedRisk   int `json:"blocked_risk"`
	Ignored       int `json:"ignored"`
	Failed        int `json:"failed"`
}
