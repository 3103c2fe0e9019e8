package handlers

import (
	"context"
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	followRepository repositories.FollowRepository
	userRepository   repositories.UserRepository
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(followRepo repositories.FollowRepository, userRepo repositories.UserRepository) *FollowHandler {
	return &FollowHandler{
		followRepository: followRepo,
		userRepository:   userRepo,
	}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	if currentUserID == targetID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot follow yourself")
	}
	ctx := c.Request().Context()

	if _, err := h.userRepository.GetUserByID(ctx, targetID); err != nil {
		return httpError(c, err, "User not found")
	}

	follow := &models.Follow{FollowerID: currentUserID, FollowingID: targetID}
	if err := h.followRepository.CreateFollow(ctx, follow); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Already following this user")
		}
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": true}})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	targetID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}

	if err := h.followRepository.DeleteFollow(c.Request().Context(), currentUserID, targetID); err != nil {
		return httpError(c, err, "Not following this user")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"following": false}})
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	return h.listEdges(c, h.followRepository.GetFollowers)
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	return h.listEdges(c, h.followRepository.GetFollowing)
}

func (h *FollowHandler) listEdges(c echo.Context, load func(ctx context.Context, userID uint) ([]models.User, error)) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	userID, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if _, err := h.userRepository.GetUserByID(ctx, userID); err != nil {
		return httpError(c, err, "User not found")
	}
	users, err := load(ctx, userID)
	if err != nil {
		return httpError(c, err, "")
	}

	profiles, err := annotateFollowing(c, h.followRepository, currentUserID, users)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profiles})
}
