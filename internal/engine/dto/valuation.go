package dto

// ValuationResult is the output of the valuation estimator.
type ValuationResult struct {
	ExpectedSalePrice  float64 `json:"expected_sale_price"`
	BuyLimit           float64 `json:"buy_limit"`
	SuggestedListPrice float64 `json:"suggested_list_price"`
	CILow              float64 `json:"ci_low"`
	CIHigh             float64 `json:"ci_high"`
	ModelConfidence    float64 `json:"model_confidence"`
	ComparablesCount   int     `json:"comparables_count"`
	Reasoning          string  `json:"reasoning"`
}
