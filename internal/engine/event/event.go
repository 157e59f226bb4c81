package event

import (
	"errors"
	"fmt"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
)

// Type names an event kind on the bus.
type Type string

const (
	TypeItemFound       Type = "ITEM_FOUND"
	TypeItemAnalyzed    Type = "ITEM_ANALYZED"
	TypeItemUnderpriced Type = "ITEM_UNDERPRICED"
	TypeOrderSubmitted  Type = "ORDER_SUBMITTED"
	TypeOrderTraded     Type = "ORDER_TRADED"
	TypeOrderFailed     Type = "ORDER_FAILED"
	TypeStrategyStarted Type = "STRATEGY_STARTED"
	TypeStrategyStopped Type = "STRATEGY_STOPPED"
	TypeCircuitOpened   Type = "CIRCUIT_OPENED"
)

// Payload is implemented by exactly one struct per event type.
type Payload interface {
	EventType() Type
	validate() error
}

// Event is a transient message on the bus. It is never persisted.
type Event struct {
	Type      Type      `json:"type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

var ErrInvalidPayload = errors.New("invalid event payload")

// New validates the payload and stamps the event.
func New(p Payload) (Event, error) {
	if p == nil {
		return Event{}, fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := p.validate(); err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, p.EventType(), err)
	}
	return Event{Type: p.EventType(), Payload: p, Timestamp: time.Now().UTC()}, nil
}

// ItemFound is emitted for every newly inserted listing.
type ItemFound struct {
	ListingID uint   `json:"listing_id"`
	Keyword   string `json:"keyword"`
	Source    string `json:"source"`
}

func (ItemFound) EventType() Type { return TypeItemFound }

func (p ItemFound) validate() error {
	if p.ListingID == 0 {
		return errors.New("listing_id is required")
	}
	return nil
}

// ItemAnalyzed carries the full analysis of a listing.
type ItemAnalyzed struct {
	Analysis dto.Analysis `json:"analysis"`
}

func (ItemAnalyzed) EventType() Type { return TypeItemAnalyzed }

func (p ItemAnalyzed) validate() error {
	return validateAnalysis(p.Analysis)
}

// ItemUnderpriced is emitted when an analysed listing is worth buying.
type ItemUnderpriced struct {
	Analysis dto.Analysis `json:"analysis"`
}

func (ItemUnderpriced) EventType() Type { return TypeItemUnderpriced }

func (p ItemUnderpriced) validate() error {
	return validateAnalysis(p.Analysis)
}

func validateAnalysis(a dto.Analysis) error {
	if a.ListingID == 0 {
		return errors.New("analysis.listing_id is required")
	}
	if a.Status == "" {
		return errors.New("analysis.status is required")
	}
	return nil
}

// OrderSubmitted asks the execution simulator to fill an order.
type OrderSubmitted struct {
	Order dto.SimulatedOrder `json:"order"`
}

func (OrderSubmitted) EventType() Type { return TypeOrderSubmitted }

func (p OrderSubmitted) validate() error {
	return validateOrder(p.Order)
}

// OrderTraded reports a filled order.
type OrderTraded struct {
	Order dto.SimulatedOrder `json:"order"`
}

func (OrderTraded) EventType() Type { return TypeOrderTraded }

func (p OrderTraded) validate() error {
	if err := validateOrder(p.Order); err != nil {
		return err
	}
	if p.Order.Status != dto.OrderStatusFilled {
		return fmt.Errorf("order status must be %q, got %q", dto.OrderStatusFilled, p.Order.Status)
	}
	return nil
}

// OrderFailed reports an order the simulator could not fill.
type OrderFailed struct {
	Order  dto.SimulatedOrder `json:"order"`
	Reason string             `json:"reason"`
}

func (OrderFailed) EventType() Type { return TypeOrderFailed }

func (p OrderFailed) validate() error {
	if p.Order.ID == "" {
		return errors.New("order.id is required")
	}
	if p.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

func validateOrder(o dto.SimulatedOrder) error {
	switch {
	case o.ID == "":
		return errors.New("order.id is required")
	case o.ListingID == 0:
		return errors.New("order.listing_id is required")
	case o.BuyPrice <= 0:
		return errors.New("order.buy_price must be positive")
	case o.Quantity <= 0:
		return errors.New("order.quantity must be positive")
	}
	return nil
}

// StrategyStarted is emitted when a strategy becomes active.
type StrategyStarted struct {
	Name string `json:"name"`
}

func (StrategyStarted) EventType() Type { return TypeStrategyStarted }

func (p StrategyStarted) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// StrategyStopped is emitted when a strategy is deactivated.
type StrategyStopped struct {
	Name string `json:"name"`
}

func (StrategyStopped) EventType() Type { return TypeStrategyStopped }

func (p StrategyStopped) validate() error {
	if p.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// CircuitOpened is emitted when the market monitor trips its breaker.
type CircuitOpened struct {
	Reason  string           `json:"reason"`
	Keyword string           `json:"keyword"`
	Circuit dto.CircuitState `json:"circuit"`
}

func (CircuitOpened) EventType() Type { return TypeCircuitOpened }

func (p CircuitOpened) validate() error {
	if p.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}
