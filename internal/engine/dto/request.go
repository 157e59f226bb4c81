package dto

// ErrorResponse represents a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

type KeywordsRequest struct {
	Keywords []string `json:"keywords"`
}

type KeywordRequest struct {
	Keyword string `json:"keyword"`
}

type StrategyProfileRequest struct {
	Profile               string   `json:"profile"`
	MinScore              *float64 `json:"min_score,omitempty"`
	MinROI                *float64 `json:"min_roi,omitempty"`
	MaxRiskScore          *float64 `json:"max_risk_score,omitempty"`
	AllowBlockedReview    *bool    `json:"allow_blocked_review,omitempty"`
	AutoRejectUnqualified *bool    `json:"auto_reject_unqualified,omitempty"`
}

type ApproveOpportunityRequest struct {
	ApprovedBuyPrice *float64 `json:"approved_buy_price,omitempty"`
	ApprovedBy       string   `json:"approved_by"`
	Note             string   `json:"note"`
}

type ReviewNoteRequest struct {
	Note string `json:"note"`
}

type BatchReviewRequest struct {
	MaxRiskScore *float64 `json:"max_risk_score,omitempty"`
	Limit        int      `json:"limit"`
	Note         string   `json:"note"`
}

type TradeListedRequest struct {
	ListingURL string `json:"listing_url"`
	Note       string `json:"note"`
}

type TradeSoldRequest struct {
	SoldPrice float64 `json:"sold_price"`
	Note      string  `json:"note"`
}

type ApplyPricingRequest struct {
	Mode string `json:"mode"`
	Note string `json:"note"`
}

type RepriceOpenRequest struct {
	Mode  string `json:"mode"`
	Limit int    `json:"limit"`
	Apply bool   `json:"apply"`
}
