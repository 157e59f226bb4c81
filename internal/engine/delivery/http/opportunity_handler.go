package http

import (
	"net/http"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/internal/entity"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

const defaultListLimit = 100

// OpportunityHandler handles the manual review workflow.
type OpportunityHandler struct {
	reviews service.ReviewService
	logger  *logger.Logger
}

// NewOpportunityHandler creates a new OpportunityHandler.
func NewOpportunityHandler(reviews service.ReviewService, logger *logger.Logger) *OpportunityHandler {
	return &OpportunityHandler{reviews: reviews, logger: logger}
}

// RegisterRoutes registers the opportunity routes to the Echo group.
func (h *OpportunityHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.List)
	g.POST("/send-to-review", h.SendToReviewBatch)
	g.GET("/:id", h.Get)
	g.POST("/:id/approve", h.Approve)
	g.POST("/:id/reject", h.Reject)
	g.POST("/:id/send-to-review", h.SendToReview)
}

func parseOpportunityStatus(raw string) (*entity.OpportunityStatus, bool) {
	if raw == "" {
		return nil, true
	}
	status := entity.OpportunityStatus(raw)
	switch status {
	case entity.OpportunityStatusPendingReview, entity.OpportunityStatusIgnored, entity.OpportunityStatusBlockedRisk,
		entity.OpportunityStatusApprovedForBuy, entity.OpportunityStatusRejected:
		return &status, true
	}
	return nil, false
}

func (h *OpportunityHandler) List(c echo.Context) error {
	status, ok := parseOpportunityStatus(c.QueryParam("status"))
	if !ok {
		return badRequest(c, "Invalid status")
	}
	limit, err := queryInt(c, "limit", defaultListLimit)
	if err != nil {
		return badRequest(c, "Invalid limit")
	}
	items, err := h.reviews.List(c.Request().Context(), status, limit)
	if err != nil {
		return respondError(c, h.logger, "Failed to list opportunities", err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *OpportunityHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid opportunity ID")
	}
	opp, err := h.reviews.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.logger, "Failed to get opportunity", err)
	}
	return c.JSON(http.StatusOK, opp)
}

// Approve opens a trade for a pending opportunity.
func (h *OpportunityHandler) Approve(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid opportunity ID")
	}
	var req dto.ApproveOpportunityRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	trade, err := h.reviews.Approve(c.Request().Context(), id, req)
	if err != nil {
		return respondError(c, h.logger, "Failed to approve opportunity", err)
	}
	return c.JSON(http.StatusCreated, trade)
}

func (h *OpportunityHandler) Reject(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid opportunity ID")
	}
	var req dto.ReviewNoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if err := h.reviews.Reject(c.Request().Context(), id, req.Note); err != nil {
		return respondError(c, h.logger, "Failed to reject opportunity", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OpportunityHandler) SendToReview(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return badRequest(c, "Invalid opportunity ID")
	}
	var req dto.ReviewNoteRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	if err := h.reviews.SendToReview(c.Request().Context(), id, req.Note); err != nil {
		return respondError(c, h.logger, "Failed to send opportunity to review", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *OpportunityHandler) SendToReviewBatch(c echo.Context) error {
	var req dto.BatchReviewRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	res, err := h.reviews.SendToReviewBatch(c.Request().Context(), req.MaxRiskScore, req.Limit, req.Note)
	if err != nil {
		return respondError(c, h.logger, "Failed to send opportunities to review", err)
	}
	return c.JSON(http.StatusOK, res)
}
