package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
)

// Strategy reacts to analysed items and may submit paper orders.
type Strategy interface {
	Name() string
	Start()
	Stop()
	Active() bool
	ApplyProfile(name string, profile config.Profile)
	OnItemAnalyzed(ctx context.Context, evt event.Event) error
	OnOrderTraded(ctx context.Context, evt event.Event) error
	Status() dto.StrategyStatus
}

// Publisher is the part of the bus a strategy emits through.
type Publisher interface {
	Publish(p event.Payload) error
}

// OpportunityStore is the slice of opportunity persistence strategies use to
// keep review status in line with their decision.
type OpportunityStore interface {
	GetByListingID(ctx context.Context, listingID uint) (*entity.Opportunity, error)
	UpdateStatus(ctx context.Context, id uint, status entity.OpportunityStatus, note string) error
}

// base carries the lifecycle, thresholds and order book shared by strategies.
type base struct {
	name      string
	publisher Publisher
	log       *logger.Logger

	mu          sync.RWMutex
	active      bool
	profileName string
	profile     config.Profile
	orders      map[string]dto.SimulatedOrder
}

func newBase(name string, publisher Publisher, log *logger.Logger) base {
	return base{
		name:      name,
		publisher: publisher,
		log:       log,
		orders:    make(map[string]dto.SimulatedOrder),
	}
}

func (b *base) Name() string {
	return b.name
}

func (b *base) Start() {
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()
	b.log.Info("Strategy started", logger.StringField("strategy", b.name))
	b.publish(event.StrategyStarted{Name: b.name})
}

func (b *base) Stop() {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
	b.log.Info("Strategy stopped", logger.StringField("strategy", b.name))
	b.publish(event.StrategyStopped{Name: b.name})
}

func (b *base) Active() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.active
}

// ApplyProfile swaps the thresholds. It takes effect on the next event.
func (b *base) ApplyProfile(name string, profile config.Profile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profileName = name
	b.profile = profile
}

func (b *base) thresholds() config.Profile {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.profile
}

func (b *base) Status() dto.StrategyStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return dto.StrategyStatus{
		Name:    b.name,
		Active:  b.active,
		Profile: b.profileName,
		Settings: dto.Profile{
			MinScore:              b.profile.MinScore,
			MinROI:                b.profile.MinROI,
			MaxRiskScore:          b.profile.MaxRiskScore,
			AllowBlockedReview:    b.profile.AllowBlockedReview,
			AutoRejectUnqualified: b.profile.AutoRejectUnqualified,
		},
		Orders: len(b.orders),
	}
}

// sendOrder records a submitted order and emits ORDER_SUBMITTED.
func (b *base) sendOrder(listingID, opportunityID uint, buyPrice, sellPrice float64) (dto.SimulatedOrder, error) {
	b.mu.Lock()
	order := dto.SimulatedOrder{
		ID:            fmt.Sprintf("%s_%d_%d", b.name, listingID, len(b.orders)),
		StrategyName:  b.name,
		ListingID:     listingID,
		OpportunityID: opportunityID,
		BuyPrice:      buyPrice,
		SellPrice:     sellPrice,
		Quantity:      1,
		Status:        dto.OrderStatusSubmitted,
		CreatedAt:     time.Now().UTC(),
	}
	b.orders[order.ID] = order
	b.mu.Unlock()

	b.log.Info("Order submitted",
		logger.StringField("strategy", b.name),
		logger.StringField("order_id", order.ID),
		logger.Float64Field("buy_price", buyPrice),
		logger.Float64Field("sell_price", sellPrice))
	return order, b.publisher.Publish(event.OrderSubmitted{Order: order})
}

// Order returns a submitted order by id.
func (b *base) Order(id string) (dto.SimulatedOrder, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

func (b *base) publish(p event.Payload) {
	if err := b.publisher.Publish(p); err != nil {
		b.log.Error("Failed to publish event",
			logger.StringField("event_type", string(p.EventType())),
			logger.ErrorField(err))
	}
}
