package strategy

import (
	"testing"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineSetProfileReachesLiveStrategies(t *testing.T) {
	cfg := config.Default().Strategy
	bus := event.NewBus(logger.NewNop(), time.Second)
	engine, err := NewEngine(bus, cfg, logger.NewNop())
	require.NoError(t, err)

	h := NewBargainHunter("BargainHunter", &opportunityStub{}, bus, logger.NewNop())
	require.NoError(t, engine.Add(h))
	assert.Error(t, engine.Add(h))

	assert.Equal(t, "balanced", h.Status().Profile)

	name, profile, err := engine.SetProfile("safe", config.ProfileOverride{MinScore: utils.ToPointer(80.0)})
	require.NoError(t, err)
	assert.Equal(t, "conservative", name)
	assert.Equal(t, 80.0, profile.MinScore)
	assert.True(t, profile.AutoRejectUnqualified)

	status := h.Status()
	assert.Equal(t, "conservative", status.Profile)
	assert.Equal(t, 80.0, status.Settings.MinScore)

	_, _, err = engine.SetProfile("yolo", config.ProfileOverride{})
	assert.Error(t, err)
	current, _ := engine.Profile()
	assert.Equal(t, "conservative", current)
}

func TestEngineStartStopEmitsEvents(t *testing.T) {
	cfg := config.Default().Strategy
	pub := &recordingPublisher{}
	bus := event.NewBus(logger.NewNop(), time.Second)
	engine, err := NewEngine(bus, cfg, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, engine.Add(NewBargainHunter("BargainHunter", &opportunityStub{}, pub, logger.NewNop())))

	engine.StartAll()
	assert.True(t, engine.Statuses()[0].Active)
	require.NoError(t, engine.Stop("BargainHunter"))
	assert.False(t, engine.Statuses()[0].Active)
	assert.Error(t, engine.Start("Missing"))

	require.Len(t, pub.payloads, 2)
	assert.Equal(t, event.TypeStrategyStarted, pub.payloads[0].EventType())
	assert.Equal(t, event.TypeStrategyStopped, pub.payloads[1].EventType())
}

// An analysed, underpriced item flows through the bus into a filled paper
// order and a portfolio position.
func TestPipelineAnalysisToPosition(t *testing.T) {
	bus := event.NewBus(logger.NewNop(), time.Second)
	engine, err := NewEngine(bus, config.Default().Strategy, logger.NewNop())
	require.NoError(t, err)

	store := &opportunityStub{byListing: map[uint]*entity.Opportunity{7: {ID: 3, ListingID: 7, Status: entity.OpportunityStatusPendingReview}}}
	require.NoError(t, engine.Add(NewBargainHunter("BargainHunter", store, bus, logger.NewNop())))

	sim := service.NewExecutionSimulator(bus, nil, logger.NewNop())
	portfolio := service.NewPortfolio(logger.NewNop())
	bus.Register(event.TypeOrderSubmitted, "execution", sim.HandleOrderSubmitted)
	bus.Register(event.TypeOrderTraded, "portfolio", portfolio.HandleOrderTraded)

	bus.Start()
	defer bus.Stop()
	engine.StartAll()

	require.NoError(t, bus.Publish(event.ItemAnalyzed{Analysis: analysis(entity.OpportunityStatusPendingReview, 80, 0.5, 10)}))

	assert.Eventually(t, func() bool {
		_, ok := portfolio.Position(7)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	pos, _ := portfolio.Position(7)
	assert.Equal(t, dto.Position{ListingID: 7, Quantity: 1, AvgCost: 50}, pos)
	order, ok := sim.Order("BargainHunter_7_0")
	require.True(t, ok)
	assert.Equal(t, dto.OrderStatusFilled, order.Status)
	assert.Equal(t, uint64(0), bus.Stats().HandlerFailures)
}
