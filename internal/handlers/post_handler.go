package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/labstack/echo/v4"
)

// EnrichedPost is a post with author info and viewer specific flags
type EnrichedPost struct {
	models.Post
	Author  models.UserCompact `json:"author"`
	IsLiked bool               `json:"is_liked"`
}

// postEnricher attaches authors and like flags to posts in two batched
// lookups.
type postEnricher struct {
	users repositories.UserRepository
	likes repositories.LikeRepository
}

func (e postEnricher) enrich(ctx context.Context, viewerID uint, posts []models.Post) ([]EnrichedPost, error) {
	authorIDs := make([]uint, 0, len(posts))
	postIDs := make([]string, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.UserID)
		postIDs = append(postIDs, p.ID.Hex())
	}

	authors, err := e.users.GetUsersByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	liked, err := e.likes.LikedPostIDs(ctx, viewerID, postIDs)
	if err != nil {
		return nil, err
	}

	enriched := make([]EnrichedPost, len(posts))
	for i, p := range posts {
		author := authors[p.UserID]
		enriched[i] = EnrichedPost{
			Post:    p,
			Author:  author.ToCompact(),
			IsLiked: liked[p.ID.Hex()],
		}
	}
	return enriched, nil
}

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	postRepository    repositories.PostRepository
	userRepository    repositories.UserRepository
	likeRepository    repositories.LikeRepository
	commentRepository repositories.CommentRepository
	notifier          Notifier
	enricher          postEnricher
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	likeRepo repositories.LikeRepository,
	commentRepo repositories.CommentRepository,
	notifier Notifier,
) *PostHandler {
	return &PostHandler{
		postRepository:    postRepo,
		userRepository:    userRepo,
		likeRepository:    likeRepo,
		commentRepository: commentRepo,
		notifier:          notifier,
		enricher:          postEnricher{users: userRepo, likes: likeRepo},
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.GET("/posts", h.GetPosts) // Posts of one user, ?user_id=
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
}

// CreatePost stores the post and notifies the author's followers
func (h *PostHandler) CreatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" && req.MediaURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Post needs content or media")
	}
	ctx := c.Request().Context()

	author, err := h.userRepository.GetUserByID(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "User not found")
	}

	post := &models.Post{
		UserID:   currentUserID,
		Content:  req.Content,
		MediaURL: req.MediaURL,
	}
	if err := h.postRepository.CreatePost(ctx, post); err != nil {
		return httpError(c, err, "")
	}
	if err := h.userRepository.IncrementPostsCount(ctx, currentUserID); err != nil {
		logger.Log.WithError(err).WithField("user_id", currentUserID).Warn("unable to bump posts count")
	}

	report, err := h.notifier.Notify(ctx, notify.Action{
		Kind:    models.KindNewPost,
		ActorID: currentUserID,
		PostID:  post.ID.Hex(),
		Message: author.Username + " shared a new post",
	})
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"data":    EnrichedPost{Post: *post, Author: author.ToCompact()},
		"meta":    echo.Map{"notified": len(report.Notifications), "delivered": report.Delivered()},
	})
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	post, err := h.postRepository.GetPostByID(ctx, c.Param("id"))
	if err != nil {
		return httpError(c, err, "Post not found")
	}

	enriched, err := h.enricher.enrich(ctx, currentUserID, []models.Post{*post})
	if err != nil {
		return httpError(c, err, "")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": enriched[0]})
}

// GetPosts lists the posts of ?user_id= (default: the caller), newest first
func (h *PostHandler) GetPosts(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}

	userID := currentUserID
	if raw := c.QueryParam("user_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
		}
		userID = uint(id)
	}
	page, limit := pagination(c, 10)
	ctx := c.Request().Context()

	posts, err := h.postRepository.GetPostsByUserID(ctx, userID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return httpError(c, err, "")
	}
	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"posts": enriched}})
}

// UpdatePost updates the content of an existing post
func (h *PostHandler) UpdatePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")

	var req models.UpdatePostRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()

	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(c, err, "Post not found")
	}

	// Ensure the user updating the post is the owner
	if existingPost.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to update this post")
	}

	if err := h.postRepository.UpdatePostContent(ctx, postID, strings.TrimSpace(req.Content)); err != nil {
		return httpError(c, err, "Post not found")
	}

	updated, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(c, err, "Post not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": updated})
}

// DeletePost deletes a post together with its likes and comments
func (h *PostHandler) DeletePost(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	postID := c.Param("id")
	ctx := c.Request().Context()

	existingPost, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(c, err, "Post not found")
	}

	// Ensure the user deleting the post is the owner
	if existingPost.UserID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "You are not authorized to delete this post")
	}

	if err := h.postRepository.DeletePost(ctx, postID); err != nil {
		return httpError(c, err, "Post not found")
	}
	if err := h.likeRepository.DeleteLikesByPostID(ctx, postID); err != nil {
		return httpError(c, err, "")
	}
	if err := h.commentRepository.DeleteCommentsByPostID(ctx, postID); err != nil {
		return httpError(c, err, "")
	}
	if err := h.userRepository.DecrementPostsCount(ctx, currentUserID); err != nil {
		logger.Log.WithError(err).WithField("user_id", currentUserID).Warn("unable to drop posts count")
	}

	return c.NoContent(http.StatusNoContent)
}
