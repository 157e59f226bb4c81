package service

import (
	"context"
	"testing"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTradeFixture(t *testing.T) (*memoryStore, TradeService, ReviewService) {
	t.Helper()
	cfg := config.Default()
	store := newMemoryStore()
	trades := NewTradeService(memoryTradeRepo{store}, NewPricingPlanner(cfg.Pricing, cfg.Trading), cfg.Pricing, logger.NewNop())
	return store, trades, newReviewService(store)
}

func approve(t *testing.T, store *memoryStore, review ReviewService, title string, price float64) *entity.Trade {
	t.Helper()
	id := seedOpportunity(store, title, price, entity.OpportunityStatusPendingReview, 10)
	trade, err := review.Approve(context.Background(), id, dto.ApproveOpportunityRequest{ApprovedBy: "ops"})
	require.NoError(t, err)
	return trade
}

func TestTitleKeywords(t *testing.T) {
	assert.Equal(t, []string{"pikachu", "promo", "holo", "2024"}, TitleKeywords("[JP] Pikachu SR promo-holo 2024 extra words"))
	assert.Equal(t, []string{"mew"}, TitleKeywords("Mew mew MEW ex"))
	assert.Empty(t, TitleKeywords("a b"))
}

func TestPricingPlanForFreshTrade(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	trade := approve(t, store, review, "Pikachu SR", 50)

	plan, err := trades.PricingPlan(context.Background(), trade.ID, dto.PricingModeBalanced)
	require.NoError(t, err)

	assert.Equal(t, trade.ID, plan.TradeID)
	assert.Equal(t, 0, plan.HoldingDays)
	assert.Equal(t, 0, plan.SimilarSalesCount)
	assert.GreaterOrEqual(t, plan.RecommendedPrice, plan.PriceFloor)
	assert.LessOrEqual(t, plan.RecommendedPrice, plan.PriceCeiling)
	require.NotNil(t, plan.CurrentTargetPrice)
	assert.Equal(t, 206.0, *plan.CurrentTargetPrice)
}

func TestPricingPlanUsesSoldTradesWithSharedKeyword(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	ctx := context.Background()

	for _, price := range []float64{180, 185, 190} {
		sold := approve(t, store, review, "Pikachu SR old", 40)
		require.NoError(t, trades.MarkSold(ctx, sold.ID, price, ""))
	}
	open := approve(t, store, review, "Pikachu SR", 50)

	plan, err := trades.PricingPlan(ctx, open.ID, dto.PricingModeBalanced)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.SimilarSalesCount)
}

func TestApplyPricingPlan(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	trade := approve(t, store, review, "Pikachu SR", 50)
	store.trades[0].TargetSellPrice = nil

	plan, applied, err := trades.ApplyPricingPlan(context.Background(), trade.ID, dto.PricingModeFastExit, "")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, dto.PricingActionSet, plan.Action)
	require.NotNil(t, store.trades[0].TargetSellPrice)
	assert.Equal(t, plan.RecommendedPrice, *store.trades[0].TargetSellPrice)
	assert.Equal(t, "auto pricing plan; mode=fast_exit; action=set", store.trades[0].Note)

	_, applied, err = trades.ApplyPricingPlan(context.Background(), trade.ID, dto.PricingModeFastExit, "")
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRepriceOpen(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	ctx := context.Background()
	a := approve(t, store, review, "Pikachu", 50)
	b := approve(t, store, review, "Mew", 50)
	sold := approve(t, store, review, "Eevee", 50)
	require.NoError(t, trades.MarkSold(ctx, sold.ID, 120, ""))
	store.trades[a.ID-1].TargetSellPrice = nil
	store.trades[b.ID-1].CreatedAt = time.Now().Add(-30 * 24 * time.Hour)

	dry, err := trades.RepriceOpen(ctx, "", 0, false)
	require.NoError(t, err)
	assert.Equal(t, dto.PricingModeBalanced, dry.Mode)
	assert.Len(t, dry.Plans, 2)
	assert.Equal(t, 0, dry.Applied)
	assert.Nil(t, store.trades[a.ID-1].TargetSellPrice)

	wet, err := trades.RepriceOpen(ctx, dto.PricingModeBalanced, 0, true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, wet.Applied, 1)
	assert.NotNil(t, store.trades[a.ID-1].TargetSellPrice)
}

func TestMarkListedAndSold(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	ctx := context.Background()
	trade := approve(t, store, review, "Pikachu", 50)

	require.NoError(t, trades.MarkListed(ctx, trade.ID, "https://example.test/item/1", "listed"))
	assert.Equal(t, entity.TradeStatusListedForSale, store.trades[0].Status)

	assert.ErrorIs(t, trades.MarkSold(ctx, trade.ID, 0, ""), repository.ErrInvalidInput)
	require.NoError(t, trades.MarkSold(ctx, trade.ID, 120.25, "sold"))
	assert.ErrorIs(t, trades.MarkSold(ctx, trade.ID, 130, ""), repository.ErrInvalidTransition)
	assert.ErrorIs(t, trades.MarkListed(ctx, trade.ID, "", ""), repository.ErrInvalidTransition)

	m, err := trades.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.SoldTrades)
	assert.Equal(t, int64(0), m.ActiveTrades)
	assert.Equal(t, 70.25, m.GrossProfit)
}

func TestTradeListFilters(t *testing.T) {
	store, trades, review := newTradeFixture(t)
	approve(t, store, review, "A", 50)
	approve(t, store, review, "B", 50)

	all, err := trades.List(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	sold, err := trades.List(context.Background(), utils.ToPointer(entity.TradeStatusSold), 0)
	require.NoError(t, err)
	assert.Empty(t, sold)
}
