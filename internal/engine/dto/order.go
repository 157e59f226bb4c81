package dto

import "time"

type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusFailed    OrderStatus = "failed"
)

// SimulatedOrder is a paper order emitted by a strategy.
type SimulatedOrder struct {
	ID            string      `json:"id"`
	StrategyName  string      `json:"strategy_name"`
	ListingID     uint        `json:"listing_id"`
	OpportunityID uint        `json:"opportunity_id"`
	BuyPrice      float64     `json:"buy_price"`
	SellPrice     float64     `json:"sell_price"`
	Quantity      int         `json:"quantity"`
	Status        OrderStatus `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	FilledAt      *time.Time  `json:"filled_at,omitempty"`
}

// Position is the weighted-average holding for one listing.
type Position struct {
	ListingID uint    `json:"listing_id"`
	Quantity  int     `json:"quantity"`
	AvgCost   float64 `json:"avg_cost"`
}
