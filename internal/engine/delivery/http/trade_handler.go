package http

import (
	"net/http"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TradeHandler handles trade lifecycle and pricing requests.
type TradeHandler struct {
	trades service.TradeService
	logger *logger.Logger
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(trades service.TradeService, logger *logger.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// RegisterRoutes registers the trade routes to the Echo group.
func (h *TradeHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.GET("/metrics", h.Metrics)
	g.POST("/reprice-open", h.RepriceOpen)
	g.GET("/:id", h.Get)
	g.GET("/:id/pricing-plan", h.PricingPlan)
	g.POST("/:id/pricing-plan/apply", h.ApplyPricingPlan)
	g.POST("/:id/listed", h.MarkListed)
	g.POST("/:id/sold", h.MarkSold)
}

func parseTradeStatus(raw string) (*entity.TradeStatus, bool) {
	if raw == "" {
		return nil, true
	}
	status := entity.TradeStatus(raw)
	switch status {
	case entity.TradeStatusApprovedForBuy, entity.TradeStatusListedForSale, entity.TradeStatusSold:
		return &status, true
	}
	return nil, false
}

func (h *TradeHandler) List(c echo.Context) error {
	status, ok := parseTradeStatus(c.QueryParam("status"))
	if !ok {
		return badRequest(c, "Invalid status")
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}
	trades, err := h.trades.List(c.Request().Context(), status, limit)
	if err != nil {
		return respondError(c, h.logger, "Failed to list trades", err)
	}
	return c.JSON(http.StatusOK, trades)
}

func (h *TradeHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid trade ID")
	}
	trade, err := h.trades.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "Failed to get trade", err)
	}
	return c.JSON(http.StatusOK, trade)
}

func (h *TradeHandler) PricingPlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid trade ID")
	}
	mode, ok := dto.ParsePricingMode(c.QueryParam("mode"))
	if !ok {
		return badRequest(c, "Invalid pricing mode")
	}
	plan, err := h.trades.PricingPlan(c.Request().Context(), id, mode)
	if err != nil {
		return respondError(c, h.logger, "Failed to build pricing plan", err)
	}
	return c.JSON(http.StatusOK, plan)
}

// ApplyPricingPlan writes the recommended price to the trade when it differs
// from the current target.
func (h *TradeHandler) ApplyPricingPlan(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid trade ID")
	}
	var req dto.ApplyPricingRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	mode, ok := dto.ParsePricingMode(req.Mode)
	if !ok {
		return badRequest(c, "Invalid pricing mode")
	}
	plan, applied, err := h.trades.ApplyPricingPlan(c.Request().Context(), id, mode, req.Note)
	if err != nil {
		return respondError(c, h.logger, "Failed to apply pricing plan", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"plan": plan, "applied": applied})
}

func (h *TradeHandler) RepriceOpen(c echo.Context) error {
	var req dto.RepriceOpenRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	mode, ok := dto.ParsePricingMode(req.Mode)
	if !ok {
		return badRequest(c, "Invalid pricing mode")
	}
	res, err := h.trades.RepriceOpen(c.Request().Context(), mode, req.Limit, req.Apply)
	if err != nil {
		return respondError(c, h.logger, "Failed to reprice open trades", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TradeHandler) MarkListed(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid trade ID")
	}
	var req dto.TradeListedRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if err := h.trades.MarkListed(c.Request().Context(), id, req.ListingURL, req.Note); err != nil {
		return respondError(c, h.logger, "Failed to mark trade listed", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TradeHandler) MarkSold(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid trade ID")
	}
	var req dto.TradeSoldRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if err := h.trades.MarkSold(c.Request().Context(), id, req.SoldPrice, req.Note); err != nil {
		return respondError(c, h.logger, "Failed to mark trade sold", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *TradeHandler) Metrics(c echo.Context) error {
	metrics, err := h.trades.Metrics(c.Request().Context())
	if err != nil {
		return respondError(c, h.logger, "Failed to load trade metrics", err)
	}
	return c.JSON(http.StatusOK, metrics)
}
