package handlers

import (
	"net/http"

	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// FeedHandler handles feed-related HTTP requests
type FeedHandler struct {
	postRepository   repositories.PostRepository
	followRepository repositories.FollowRepository
	enricher         postEnricher
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(
	postRepo repositories.PostRepository,
	userRepo repositories.UserRepository,
	followRepo repositories.FollowRepository,
	likeRepo repositories.LikeRepository,
) *FeedHandler {
	return &FeedHandler{
		postRepository:   postRepo,
		followRepository: followRepo,
		enricher:         postEnricher{users: userRepo, likes: likeRepo},
	}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed", h.GetFeed)
	g.GET("/feed/explore", h.Explore)
}

// GetFeed returns the caller's and followed users' posts, newest first
func (h *FeedHandler) GetFeed(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10)
	ctx := c.Request().Context()

	authors, err := h.followRepository.GetFollowingIDs(ctx, currentUserID)
	if err != nil {
		return httpError(c, err, "")
	}
	authors = append(authors, currentUserID)

	posts, err := h.postRepository.GetPostsByUserIDs(ctx, authors, int64((page-1)*limit), int64(limit))
	if err != nil {
		return httpError(c, err, "")
	}
	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enriched},
		"meta": echo.Map{
			"currentPage":  page,
			"itemsPerPage": limit,
			"hasNextPage":  len(posts) == limit,
		},
	})
}

// Explore returns recent posts by everyone except the caller
func (h *FeedHandler) Explore(c echo.Context) error {
	currentUserID, err := requireUser(c)
	if err != nil {
		return err
	}
	page, limit := pagination(c, 10)
	ctx := c.Request().Context()

	posts, err := h.postRepository.GetRecentPosts(ctx, currentUserID, int64((page-1)*limit), int64(limit))
	if err != nil {
		return httpError(c, err, "")
	}
	enriched, err := h.enricher.enrich(ctx, currentUserID, posts)
	if err != nil {
		return httpError(c, err, "")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"posts": enriched},
		"meta": echo.Map{
			"currentPage":  page,
			"itemsPerPage": limit,
			"hasNextPage":  len(posts) == limit,
		},
	})
}
