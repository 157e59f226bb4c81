package http

import (
	"errors"
	"net/http"
	"strconv"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/pkg/logger"

	"github.com/labstack/echo/v4"
)

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrInvalidTransition):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondError(c echo.Context, log *logger.Logger, msg string, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error(msg, logger.ErrorField(err), logger.StringField("path", c.Path()))
		return c.JSON(status, dto.ErrorResponse{Error: msg})
	}
	return c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msg})
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

// queryInt reads an optional integer query parameter.
func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
