package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// DeviceHandler registers push notification tokens
type DeviceHandler struct {
	deviceTokenRepository repositories.DeviceTokenRepository
}

func NewDeviceHandler(repo repositories.DeviceTokenRepository) *DeviceHandler {
	return &DeviceHandler{deviceTokenRepository: repo}
}

func (h *DeviceHandler) RegisterDeviceRoutes(g *echo.Group) {
	g.POST("/devices", h.RegisterDevice)
}

func (h *DeviceHandler) RegisterDevice(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.RegisterDeviceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	token := &models.DeviceToken{UserID: currentUserID, Token: req.Token, Platform: req.Platform}
	if err := h.deviceTokenRepository.UpsertToken(c.Request().Context(), token); err != nil {
		return httpError(c, err, "")
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"registered": true}})
}
