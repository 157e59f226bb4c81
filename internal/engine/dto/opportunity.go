package dto

import "golang-cardflip-engine/internal/entity"

// OpportunityScore is the profit gate output before the risk gate.
type OpportunityScore struct {
	NetProfit float64                  `json:"net_profit"`
	ROI       float64                  `json:"roi"`
	Score     float64                  `json:"score"`
	Status    entity.OpportunityStatus `json:"status"`
}

// ListOpportunitiesParam filters opportunity listings.
type ListOpportunitiesParam struct {
	Status *entity.OpportunityStatus
	Limit  int
}

// BatchReviewResult summarises a batch send-to-review pass.
type BatchReviewResult struct {
	Scanned int    `json:"scanned"`
	Moved   int    `json:"moved"`
	IDs     []uint `json:"ids"`
}
