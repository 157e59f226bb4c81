package http

import (
	"net/http"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StrategyEngine is the strategy engine surface the API drives.
type StrategyEngine interface {
	Profile() (string, config.Profile)
	SetProfile(name string, overrides config.ProfileOverride) (string, config.Profile, error)
	Statuses() []dto.StrategyStatus
}

// StatusSource collects the runtime pieces reported by the engine status endpoint.
type StatusSource struct {
	Bus       interface{ Stats() dto.BusStats }
	Monitor   interface{ Status() dto.MonitorStatus }
	Scanner   interface{ Status() dto.ScannerStatus }
	Orders    interface{ Count() int }
	Positions interface{ Positions() []dto.Position }
}

// ProfileResponse is the active strategy profile.
type ProfileResponse struct {
	Profile   string         `json:"profile"`
	Settings  config.Profile `json:"settings"`
	Available []string       `json:"available"`
}

// StrategyHandler handles strategy profile and engine status requests.
type StrategyHandler struct {
	engine StrategyEngine
	status StatusSource
	logger *logger.Logger
}

// NewStrategyHandler creates a new StrategyHandler.
func NewStrategyHandler(engine StrategyEngine, status StatusSource, logger *logger.Logger) *StrategyHandler {
	return &StrategyHandler{engine: engine, status: status, logger: logger}
}

// RegisterRoutes registers the strategy and status routes to the Echo group.
func (h *StrategyHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/strategy/profile", h.GetProfile)
	g.PUT("/strategy/profile", h.SetProfile)
	g.GET("/strategy", h.Strategies)
	g.GET("/engine/status", h.EngineStatus)
	g.GET("/positions", h.Positions)
}

func (h *StrategyHandler) GetProfile(c echo.Context) error {
	name, profile := h.engine.Profile()
	return c.JSON(http.StatusOK, ProfileResponse{Profile: name, Settings: profile, Available: config.ProfileNames()})
}

// SetProfile switches every live strategy to a named profile. Omitted
// threshold fields keep the profile's own values.
func (h *StrategyHandler) SetProfile(c echo.Context) error {
	var req dto.StrategyProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	name, profile, err := h.engine.SetProfile(req.Profile, config.ProfileOverride{
		MinScore:              req.MinScore,
		MinROI:                req.MinROI,
		MaxRiskScore:          req.MaxRiskScore,
		AllowBlockedReview:    req.AllowBlockedReview,
		AutoRejectUnqualified: req.AutoRejectUnqualified,
	})
	if err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(http.StatusOK, ProfileResponse{Profile: name, Settings: profile, Available: config.ProfileNames()})
}

func (h *StrategyHandler) Strategies(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Statuses())
}

func (h *StrategyHandler) EngineStatus(c echo.Context) error {
	var status dto.EngineStatus
	if h.status.Bus != nil {
		status.Bus = h.status.Bus.Stats()
	}
	if h.status.Monitor != nil {
		status.Monitor = h.status.Monitor.Status()
	}
	if h.status.Scanner != nil {
		status.Scanner = h.status.Scanner.Status()
	}
	if h.status.Orders != nil {
		status.Orders = h.status.Orders.Count()
	}
	if h.status.Positions != nil {
		status.Positions = h.status.Positions.Positions()
	}
	status.Strategies = h.engine.Statuses()
	return c.JSON(http.StatusOK, status)
}

func (h *StrategyHandler) Positions(c echo.Context) error {
	if h.status.Positions == nil {
		return c.JSON(http.StatusOK, []dto.Position{})
	}
	return c.JSON(http.StatusOK, h.status.Positions.Positions())
}
