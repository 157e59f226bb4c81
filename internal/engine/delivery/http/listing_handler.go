package http

import (
	"net/http"

	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ListingHandler triggers analysis of stored listings.
type ListingHandler struct {
	analysis service.AnalysisEngine
	logger   *logger.Logger
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(analysis service.AnalysisEngine, logger *logger.Logger) *ListingHandler {
	return &ListingHandler{analysis: analysis, logger: logger}
}

// RegisterRoutes registers the listing routes to the Echo group.
func (h *ListingHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/analyze-open", h.AnalyzeOpen)
	g.POST("/:id/analyze", h.Analyze)
}

func (h *ListingHandler) Analyze(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid listing ID")
	}
	analysis, err := h.analysis.AnalyzeListing(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "Failed to analyze listing", err)
	}
	return c.JSON(http.StatusOK, analysis)
}

// AnalyzeOpen analyses a batch of open listings; limit 0 uses the configured batch size.
func (h *ListingHandler) AnalyzeOpen(c echo.Context) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}
	res, err := h.analysis.AnalyzeOpen(c.Request().Context(), limit)
	if err != nil {
		return respondError(c, h.logger, "Failed to analyze open listings", err)
	}
	return c.JSON(http.StatusOK, res)
}
