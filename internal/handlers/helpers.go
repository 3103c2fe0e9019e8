package handlers

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Notifier fans a user action out as notifications.
type Notifier interface {
	Notify(ctx context.Context, a notify.Action) (*notify.Report, error)
}

// LivePusher pushes a frame to a user's open socket.
type LivePusher interface {
	SendTo(userID uint, v interface{}) realtime.DeliveryResult
}

// getUserIDFromContext returns the authenticated user's id, 0 if none.
func getUserIDFromContext(c echo.Context) uint {
	id, _ := middleware.UserID(c)
	return id
}

func requireUser(c echo.Context) (uint, error) {
	id := getUserIDFromContext(c)
	if id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

func parseIDParam(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+label+" ID")
	}
	return uint(id), nil
}

// httpError maps repository errors onto HTTP errors. Anything unexpected is
// logged and reported as a 500 without leaking details.
func httpError(c echo.Context, err error, notFoundMsg string) error {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFoundMsg)
	case errors.Is(err, repositories.ErrAlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, "Already exists")
	}
	logger.Log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

func pagination(c echo.Context, defaultLimit int) (page, limit int) {
	page, _ = strconv.Atoi(c.QueryParam("page"))
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 50 {
		limit = defaultLimit
	}
	return page, limit
}

func pageMeta(page, limit int, total int64) echo.Map {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return echo.Map{
		"currentPage":     page,
		"totalPages":      totalPages,
		"totalItems":      total,
		"itemsPerPage":    limit,
		"hasNextPage":     page < totalPages,
		"hasPreviousPage": page > 1,
	}
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}
