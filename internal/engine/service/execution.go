package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"
)

// FillFunc decides whether a paper order fills. A non-nil error fails it.
type FillFunc func(order dto.SimulatedOrder) error

// ExecutionSimulator fills submitted orders on paper.
type ExecutionSimulator struct {
	publisher EventPublisher
	log       *logger.Logger
	fill      FillFunc

	mu     sync.RWMutex
	orders map[string]dto.SimulatedOrder
	seq    []string
}

// NewExecutionSimulator creates a simulator. A nil fill fills every order.
func NewExecutionSimulator(publisher EventPublisher, fill FillFunc, log *logger.Logger) *ExecutionSimulator {
	if fill == nil {
		fill = func(dto.SimulatedOrder) error { return nil }
	}
	return &ExecutionSimulator{
		publisher: publisher,
		log:       log,
		fill:      fill,
		orders:    make(map[string]dto.SimulatedOrder),
	}
}

// HandleOrderSubmitted is the bus handler for ORDER_SUBMITTED.
func (e *ExecutionSimulator) HandleOrderSubmitted(ctx context.Context, evt event.Event) error {
	submitted, ok := evt.Payload.(event.OrderSubmitted)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	order := submitted.Order

	if err := e.fill(order); err != nil {
		order.Status = dto.OrderStatusFailed
		order.FailureReason = err.Error()
		e.store(order)
		e.log.Warn("Order failed",
			logger.StringField("order_id", order.ID),
			logger.ErrorField(err))
		return e.publisher.Publish(event.OrderFailed{Order: order, Reason: order.FailureReason})
	}

	order.Status = dto.OrderStatusFilled
	order.FilledAt = utils.ToPointer(time.Now().UTC())
	e.store(order)
	e.log.Info("Order filled",
		logger.StringField("order_id", order.ID),
		logger.Float64Field("buy_price", order.BuyPrice))
	return e.publisher.Publish(event.OrderTraded{Order: order})
}

func (e *ExecutionSimulator) store(order dto.SimulatedOrder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.orders[order.ID]; !exists {
		e.seq = append(e.seq, order.ID)
	}
	e.orders[order.ID] = order
}

// Order returns a recorded order by id.
func (e *ExecutionSimulator) Order(id string) (dto.SimulatedOrder, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	o, ok := e.orders[id]
	return o, ok
}

// Orders returns every recorded order in arrival order.
func (e *ExecutionSimulator) Orders() []dto.SimulatedOrder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]dto.SimulatedOrder, 0, len(e.seq))
	for _, id := range e.seq {
		out = append(out, e.orders[id])
	}
	return out
}

func (e *ExecutionSimulator) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.orders)
}

// Portfolio tracks paper positions built from filled orders.
type Portfolio struct {
	log *logger.Logger

	mu        sync.RWMutex
	positions map[uint]dto.Position
}

func NewPortfolio(log *logger.Logger) *Portfolio {
	return &Portfolio{log: log, positions: make(map[uint]dto.Position)}
}

// HandleOrderTraded is the bus handler for ORDER_TRADED.
func (p *Portfolio) HandleOrderTraded(ctx context.Context, evt event.Event) error {
	traded, ok := evt.Payload.(event.OrderTraded)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", evt.Payload, evt.Type)
	}
	p.Apply(traded.Order)
	return nil
}

// Apply adds one unit at the order's buy price. Orders that are not filled
// are ignored.
func (p *Portfolio) Apply(order dto.SimulatedOrder) {
	if order.Status != dto.OrderStatusFilled {
		return
	}

	p.mu.Lock()
	pos := p.positions[order.ListingID]
	pos.ListingID = order.ListingID
	pos.AvgCost = (pos.AvgCost*float64(pos.Quantity) + order.BuyPrice) / float64(pos.Quantity+1)
	pos.Quantity++
	p.positions[order.ListingID] = pos
	p.mu.Unlock()

	p.log.Info("Position updated",
		logger.IntField("listing_id", int(pos.ListingID)),
		logger.IntField("quantity", pos.Quantity),
		logger.Float64Field("avg_cost", pos.AvgCost))
}

// Position returns the holding for a listing.
func (p *Portfolio) Position(listingID uint) (dto.Position, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	pos, ok := p.positions[listingID]
	return pos, ok
}

// Positions returns every holding ordered by listing id.
func (p *Portfolio) Positions() []dto.Position {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]dto.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ListingID < out[j].ListingID })
	return out
}
