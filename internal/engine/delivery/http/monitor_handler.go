package http

import (
	"net/http"
	"strings"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/service"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// MonitorHandler exposes the market monitor and scan scheduler commands.
type MonitorHandler struct {
	monitor service.MarketMonitorService
	scanner service.ScanSchedulerService
	logger  *logger.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(monitor service.MarketMonitorService, scanner service.ScanSchedulerService, logger *logger.Logger) *MonitorHandler {
	return &MonitorHandler{monitor: monitor, scanner: scanner, logger: logger}
}

// RegisterMonitorRoutes registers the monitor routes to the Echo group.
func (h *MonitorHandler) RegisterMonitorRoutes(g *echo.Group) {
	g.GET("/status", h.MonitorStatus)
	g.POST("/start", h.StartMonitor)
	g.POST("/stop", h.StopMonitor)
	g.POST("/run-once", h.RunMonitorOnce)
}

// RegisterScannerRoutes registers the scanner routes to the Echo group.
func (h *MonitorHandler) RegisterScannerRoutes(g *echo.Group) {
	g.GET("/status", h.ScannerStatus)
	g.POST("/start", h.StartScanner)
	g.POST("/stop", h.StopScanner)
	g.POST("/scan-once", h.ScanOnce)
	g.GET("/keywords", h.Keywords)
	g.PUT("/keywords", h.SetKeywords)
	g.POST("/keywords", h.AddKeyword)
}

func (h *MonitorHandler) MonitorStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Status())
}

// StartMonitor answers 409 when the monitor is already running or cooling down.
func (h *MonitorHandler) StartMonitor(c echo.Context) error {
	res := h.monitor.Start(c.Request().Context())
	if !res.Started {
		return c.JSON(http.StatusConflict, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MonitorHandler) StopMonitor(c echo.Context) error {
	return c.JSON(http.StatusOK, h.monitor.Stop())
}

func (h *MonitorHandler) RunMonitorOnce(c echo.Context) error {
	res, err := h.monitor.RunOnce(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MonitorHandler) ScannerStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scanner.Status())
}

func (h *MonitorHandler) StartScanner(c echo.Context) error {
	res := h.scanner.Start(c.Request().Context())
	if !res.Started {
		return c.JSON(http.StatusConflict, res)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *MonitorHandler) StopScanner(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scanner.Stop())
}

func (h *MonitorHandler) ScanOnce(c echo.Context) error {
	return c.JSON(http.StatusOK, h.scanner.ScanOnce(c.Request().Context()))
}

func (h *MonitorHandler) Keywords(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.KeywordsRequest{Keywords: h.scanner.Keywords()})
}

func (h *MonitorHandler) SetKeywords(c echo.Context) error {
	var req dto.KeywordsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Invalid request payload")
	}
	return c.JSON(http.StatusOK, dto.KeywordsRequest{Keywords: h.scanner.SetKeywords(req.Keywords)})
}

func (h *MonitorHandler) AddKeyword(c echo.Context) error {
	var req dto.KeywordRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Keyword) == "" {
		return badRequest(c, "keyword is required")
	}
	return c.JSON(http.StatusOK, dto.KeywordsRequest{Keywords: h.scanner.AddKeyword(req.Keyword)})
}
