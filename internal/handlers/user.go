package handlers

import (
	"net/http"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	notifier         Notifier
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository, followRepo repositories.FollowRepository, notifier Notifier) *UserHandler {
	return &UserHandler{userRepository: userRepo, followRepository: followRepo, notifier: notifier}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
	g.PUT("/profile/picture", h.UpdateProfilePicture)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser) // Get other user's profile by ID
}

func (h *UserHandler) GetUser(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	id, err := parseIDParam(c, "id", "user")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, id)
	if err != nil {
		return httpError(c, err, "User profile not found")
	}

	profile := models.UserProfile{User: *user}
	if id != currentUserID {
		if profile.IsFollowing, err = h.followRepository.IsFollowing(ctx, currentUserID, id); err != nil {
			return httpError(c, err, "")
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profile})
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	user, err := h.userRepository.GetUserByID(c.Request().Context(), currentUserID)
	if err != nil {
		return httpError(c, err, "User profile not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": user})
}

// UpdateProfile updates the authenticated user's username and bio
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User profile not found")
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Bio != "" {
		user.Bio = strings.TrimSpace(req.Bio)
	}

	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Username already taken")
		}
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": user})
}

// UpdateProfilePicture stores the new picture URL and tells every follower.
func (h *UserHandler) UpdateProfilePicture(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateProfilePictureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	user, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User profile not found")
	}

	user.ProfilePicture = req.ProfilePicture
	if err := h.userRepository.UpdateUser(ctx, user); err != nil {
		return httpError(c, err, "")
	}

	report, err := h.notifier.Notify(ctx, notify.Action{
		Kind:    models.KindProfilePictureUpdate,
		ActorID: user.ID,
		Message: user.Username + " updated their profile picture",
	})
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    user,
		"meta":    echo.Map{"notified": len(report.Notifications)},
	})
}

// SearchUsers finds users whose username starts with q
func (h *UserHandler) SearchUsers(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Search query 'q' is required")
	}
	ctx := c.Request().Context()

	users, err := h.userRepository.SearchUsers(ctx, query, 20)
	if err != nil {
		return httpError(c, err, "")
	}

	profiles, err := annotateFollowing(c, h.followRepository, currentUserID, users)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": profiles})
}

// annotateFollowing marks which of users the viewer follows.
func annotateFollowing(c echo.Context, follows repositories.FollowRepository, viewerID uint, users []models.User) ([]models.UserProfile, error) {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	following, err := follows.FollowingSet(c.Request().Context(), viewerID, ids)
	if err != nil {
		return nil, httpError(c, err, "")
	}

	profiles := make([]models.UserProfile, len(users))
	for i, u := range users {
		profiles[i] = models.UserProfile{User: u, IsFollowing: following[u.ID]}
	}
	return profiles, nil
}
