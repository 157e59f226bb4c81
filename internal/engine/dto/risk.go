package dto

const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// RiskInput is everything the risk scorer looks at.
type RiskInput struct {
	ListPrice          float64
	Valuation          ValuationResult
	SellerListingCount int
	Text               string
}

// RiskAssessment is the additive risk score of one listing.
type RiskAssessment struct {
	Score     float64  `json:"score"`
	Level     string   `json:"level"`
	HardBlock bool     `json:"hard_block"`
	Reasons   []string `json:"reasons"`
}
