package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// OnlineLister reports who currently holds a live socket.
type OnlineLister interface {
	OnlineUsers() []uint
}

func HealthCheck(e echo.Context) error {
	return e.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "nano-social",
	})
}

// OnlineUsers lists the ids of connected users.
func OnlineUsers(presence OnlineLister) echo.HandlerFunc {
	return func(c echo.Context) error {
		users := presence.OnlineUsers()
		return c.JSON(http.StatusOK, echo.Map{
			"success": true,
			"data":    echo.Map{"users": users, "count": len(users)},
		})
	}
}
