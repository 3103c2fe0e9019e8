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

// CommentHandler handles HTTP requests related to comments and comment likes
type CommentHandler struct {
	commentRepository     repositories.CommentRepository
	commentLikeRepository repositories.CommentLikeRepository
	postRepository        repositories.PostRepository // To update comment counts in posts
	userRepository        repositories.UserRepository // To fetch user details for comments
	notifier              Notifier
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(
	commentRepo repositories.CommentRepository,
	commentLikeRepo repositories.CommentLikeRepository,
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	notifier Notifier,
) *CommentHandler {
	return &CommentHandler{
		commentRepository:     commentRepo,
		commentLikeRepository: commentLikeRepo,
		postRepository:        postRepo,
		userRepository:        userRepo,
		notifier:              notifier,
	}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:post_id/comments", h.CreateComment)
	g.GET("/posts/:post_id/comments", h.GetCommentsByPostID)
	g.DELETE("/comments/:id", h.DeleteComment)
	g.POST("/comments/:id/likes", h.LikeComment)
	g.DELETE("/comments/:id/likes", h.UnlikeComment)
}

// CreateComment creates a new comment on a post and notifies the post owner
func (h *CommentHandler) CreateComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")

	var req models.CreateCommentRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	// Verify post exists
	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(c, err, "Post not found")
	}
	author, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User not found")
	}

	comment := &models.Comment{
		PostID:  postID,
		UserID:  currentUserID,
		Content: strings.TrimSpace(req.Content),
	}
	if err := h.commentRepository.CreateComment(ctx, comment); err != nil {
		return httpError(c, err, "")
	}
	if err := h.postRepository.IncrementCommentsCount(ctx, postID); err != nil {
		return httpError(c, err, "")
	}

	commentID := comment.ID
	if _, err := h.notifier.Notify(ctx, notify.Action{
		Kind:      models.KindNewComment,
		ActorID:   currentUserID,
		OwnerID:   post.UserID,
		PostID:    postID,
		CommentID: &commentID,
		Message:   author.Username + " commented on your post",
	}); err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    models.CommentView{Comment: *comment, Author: author.ToCompact()},
	})
}

// GetCommentsByPostID retrieves all comments for a specific post, oldest first
func (h *CommentHandler) GetCommentsByPostID(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("post_id")
	ctx := c.Request().Context()

	// Verify post exists
	if _, err := h.postRepository.GetPostByID(ctx, postID); err != nil {
		return httpError(c, err, "Post not found")
	}

	comments, err := h.commentRepository.GetCommentsByPostID(ctx, postID)
	if err != nil {
		return httpError(c, err, "")
	}

	authorIDs := make([]uint, len(comments))
	commentIDs := make([]uint, len(comments))
	for i, cm := range comments {
		authorIDs[i] = cm.UserID
		commentIDs[i] = cm.ID
	}
	authors, err := h.userRepository.GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return httpError(c, err, "")
	}
	liked, err := h.commentLikeRepository.LikedCommentIDs(ctx, currentUserID, commentIDs)
	if err != nil {
		return httpError(c, err, "")
	}

	views := make([]models.CommentView, len(comments))
	for i, cm := range comments {
		author := authors[cm.UserID]
		views[i] = models.CommentView{Comment: cm, Author: author.ToCompact(), IsLikedByMe: liked[cm.ID]}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": views})
}

// DeleteComment deletes a comment. The comment author and the post owner may
// both do this.
func (h *CommentHandler) DeleteComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseIDParam(c, "id", "comment")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	comment, err := h.commentRepository.GetCommentByID(ctx, commentID)
	if err != nil {
		return httpError(c, err, "Comment not found")
	}

	if comment.UserID != currentUserID {
		post, err := h.postRepository.GetPostByID(ctx, comment.PostID)
		if err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return httpError(c, err, "")
		}
		if post == nil || post.UserID != currentUserID {
			return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this comment")
		}
	}

	if err := h.commentRepository.DeleteComment(ctx, commentID); err != nil {
		return httpError(c, err, "Comment not found")
	}
	if err := h.postRepository.DecrementCommentsCount(ctx, comment.PostID); err != nil {
		return httpError(c, err, "")
	}

	return c.NoContent(http.StatusNoContent)
}

// LikeComment likes a comment and notifies its author
func (h *CommentHandler) LikeComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseIDParam(c, "id", "comment")
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	comment, err := h.commentRepository.GetCommentByID(ctx, commentID)
	if err != nil {
		return httpError(c, err, "Comment not found")
	}
	actor, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User not found")
	}

	if err := h.commentLikeRepository.CreateCommentLike(ctx, &models.CommentLike{CommentID: commentID, UserID: currentUserID}); err != nil {
		if errors.Is(err, repositories.ErrAlreadyExists) {
			return echo.NewHTTPError(http.StatusConflict, "Comment already liked")
		}
		return httpError(c, err, "")
	}

	if _, err := h.notifier.Notify(ctx, notify.Action{
		Kind:      models.KindLikeComment,
		ActorID:   currentUserID,
		OwnerID:   comment.UserID,
		PostID:    comment.PostID,
		CommentID: &commentID,
		Message:   actor.Username + " liked your comment",
	}); err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"liked": true}})
}

func (h *CommentHandler) UnlikeComment(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	commentID, err := parseIDParam(c, "id", "comment")
	if err != nil {
		return err
	}

	if err := h.commentLikeRepository.DeleteCommentLike(c.Request().Context(), commentID, currentUserID); err != nil {
		return httpError(c, err, "Comment like not found")
	}
	return c.NoContent(http.StatusNoContent)
}
