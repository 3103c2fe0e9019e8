package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	service                *notify.Service
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *notify.Service, notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository) *NotificationHandler {
	return &NotificationHandler{
		service:                service,
		notificationRepository: notifRepo,
		userRepository:         userRepo,
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor models.UserCompact `json:"actor"`
}

func (h *NotificationHandler) enrichNotifications(ctx context.Context, notifications []models.Notification) ([]EnrichedNotification, error) {
	actorIDs := make([]uint, len(notifications))
	for i, n := range notifications {
		actorIDs[i] = n.ActorID
	}
	actors, err := h.userRepository.GetUsersByIDs(ctx, actorIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedNotification, len(notifications))
	for i, n := range notifications {
		actor := actors[n.ActorID]
		enriched[i] = EnrichedNotification{Notification: n, Actor: actor.ToCompact()}
	}
	return enriched, nil
}

// GetNotifications returns paginated notifications, newest first. Reading the
// list does not mark anything as read; ?unread=true filters to unread ones.
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 20)
	unreadOnly := c.QueryParam("unread") == "true"
	ctx := c.Request().Context()

	notifications, total, err := h.service.List(ctx, currentUserID, page, limit, unreadOnly)
	if err != nil {
		return httpError(c, err, "")
	}
	enriched, err := h.enrichNotifications(ctx, notifications)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": enriched,
		},
		"meta": pageMeta(page, limit, total),
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	today, yesterday, thisWeek, older, err := h.notificationRepository.GetGrouped(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}
	unreadCount, err := h.service.UnreadCount(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}

	groups := echo.Map{}
	for name, list := range map[string][]models.Notification{
		"today":     today,
		"yesterday": yesterday,
		"thisWeek":  thisWeek,
		"older":     older,
	} {
		enriched, err := h.enrichNotifications(ctx, list)
		if err != nil {
			return httpError(c, err, "")
		}
		groups[name] = enriched
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": groups,
			"unreadCount":   unreadCount,
		},
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	count, err := h.service.UnreadCount(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"count": count}})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	notifID, err := parseIDParam(c, "id", "notification")
	if err != nil {
		return err
	}

	n, err := h.service.MarkRead(c.Request().Context(), currentUserID, notifID)
	if err != nil {
		return httpError(c, err, "Notification not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": n})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	count, err := h.service.MarkAllRead(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"updated": count}})
}
