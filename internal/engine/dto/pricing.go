package dto

type PricingMode string

const (
	PricingModeBalanced  PricingMode = "balanced"
	PricingModeFastExit  PricingMode = "fast_exit"
	PricingModeProfitMax PricingMode = "profit_max"
)

// ParsePricingMode returns the mode for a name, defaulting to balanced.
func ParsePricingMode(s string) (PricingMode, bool) {
	switch PricingMode(s) {
	case PricingModeBalanced, "":
		return PricingModeBalanced, true
	case PricingModeFastExit:
		return PricingModeFastExit, true
	case PricingModeProfitMax:
		return PricingModeProfitMax, true
	}
	return PricingModeBalanced, false
}

const (
	PricingActionSet   = "set"
	PricingActionRaise = "raise"
	PricingActionLower = "lower"
	PricingActionKeep  = "keep"

	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// PricingInput is what the planner needs to know about one trade.
type PricingInput struct {
	Mode               PricingMode
	ApprovedBuyPrice   float64
	CurrentTarget      *float64
	ExpectedSalePrice  float64
	SuggestedListPrice float64
	CILow              float64
	CIHigh             float64
	HoldingDays        int
	ActiveTrades       int
	SimilarPrices      []float64
}

// PricingPlan is a reprice recommendation for an open trade.
type PricingPlan struct {
	TradeID            uint        `json:"trade_id,omitempty"`
	Mode               PricingMode `json:"mode"`
	RecommendedPrice   float64     `json:"recommended_price"`
	CurrentTargetPrice *float64    `json:"current_target_price"`
	ExpectedSalePrice  float64     `json:"expected_sale_price"`
	PriceFloor         float64     `json:"price_floor"`
	PriceCeiling       float64     `json:"price_ceiling"`
	HoldingDays        int         `json:"holding_days"`
	Urgency            string      `json:"urgency"`
	Action             string      `json:"action"`
	VolatilityRatio    float64     `json:"volatility_ratio"`
	SimilarSalesCount  int         `json:"similar_sales_count"`
	Reasons            []string    `json:"reasons"`
}

// ShouldApply reports whether the plan changes the target price.
func (p PricingPlan) ShouldApply() bool {
	return p.Action == PricingActionSet || p.Action == PricingActionRaise || p.Action == PricingActionLower
}

// RepriceResult summarises a reprice pass over open trades.
type RepriceResult struct {
	Mode    PricingMode   `json:"mode"`
	Applied int           `json:"applied"`
	Plans   []PricingPlan `json:"plans"`
	Errors  []string      `json:"errors,omitempty"`
}

// TradeMetrics is the dashboard summary of the review and trade pipeline.
type TradeMetrics struct {
	PendingReview int64   `json:"pending_review"`
	ActiveTrades  int64   `json:"active_trades"`
	SoldTrades    int64   `json:"sold_trades"`
	GrossProfit   float64 `json:"gross_profit"`
}
