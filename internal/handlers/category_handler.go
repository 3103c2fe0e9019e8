package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// GetCategories returns the fixed list of interest categories
func GetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": models.Categories})
}
