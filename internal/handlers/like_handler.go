package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// LikeHandler handles HTTP requests related to post likes
type LikeHandler struct {
	likeRepository repositories.LikeRepository
	postRepository repositories.PostRepository
	userRepository repositories.UserRepository
	notifier       Notifier
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(likeRepo repositories.LikeRepository, postRepo repositories.PostRepository, userRepo repositories.UserRepository, notifier Notifier) *LikeHandler {
	return &LikeHandler{
		likeRepository: likeRepo,
		postRepository: postRepo,
		userRepository: userRepo,
		notifier:       notifier,
	}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/likes", h.LikePost)
	g.DELETE("/posts/:post_id/likes", h.UnlikePost)
	g.GET("/posts/:post_id/likes/status", h.GetLikeStatus)
}

// LikePost likes a post and notifies its owner
func (h *LikeHandler) LikePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")
	ctx := c.Request().Context()

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(c, err, "Post not found")
	}
	actor, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User not found")
	}

	like := &models.Like{PostID: postID, UserID: currentUserID}
	if err := h.likeRepository.CreateLike(ctx, like); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Post already liked")
		}
		return httpError(c, err, "")
	}
	if err := h.postRepository.IncrementLikesCount(ctx, postID); err != nil {
		return httpError(c, err, "")
	}

	if _, err := h.notifier.Notify(ctx, notify.Action{
		Kind:    models.KindLikePost,
		ActorID: currentUserID,
		OwnerID: post.UserID,
		PostID:  postID,
		Message: actor.Username + " liked your post",
	}); err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": like})
}

// UnlikePost removes the caller's like from a post
func (h *LikeHandler) UnlikePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")
	ctx := c.Request().Context()

	if err := h.likeRepository.DeleteLike(ctx, postID, currentUserID); err != nil {
		return httpError(c, err, "Like not found")
	}
	if err := h.postRepository.DecrementLikesCount(ctx, postID); err != nil {
		return httpError(c, err, "")
	}

	return c.NoContent(http.StatusNoContent)
}

// GetLikeStatus reports whether the caller likes the post
func (h *LikeHandler) GetLikeStatus(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	liked, err := h.likeRepository.HasUserLikedPost(c.Request().Context(), c.Param("post_id"), currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"liked": liked}})
}
