package router

import (
	"time"

	"github.com/anonto42/nano-social/backend/internal/handlers"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// Dependencies are the process-wide collaborators the routes are built from.
// Offline, Unread and FirebaseAuth are optional; Revoked defaults to an
// in-memory denylist.
type Dependencies struct {
	SQL          *gorm.DB
	Posts        repositories.PostRepository
	Registry     *realtime.Registry
	Offline      notify.OfflineQueue
	Unread       notify.UnreadCache
	FirebaseAuth middleware.IDTokenVerifier
	Revoked      middleware.TokenDenylist
	JWTSecret    string
	WriteTimeout time.Duration
	PongTimeout  time.Duration
}

// SetupRoutes migrates the relational schema, configures all application
// routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) error {
	if err := deps.SQL.AutoMigrate(models.Relational()...); err != nil {
		return errors.Wrap(err, "failed to auto migrate models")
	}
	logger.Log.Info("Auto-migrations completed for all relational models.")

	// Health check and categories - always accessible
	e.GET("/health", handlers.HealthCheck)
	e.GET("/api/v1/categories", handlers.GetCategories)

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(deps.SQL)
	followRepo := repositories.NewPostgresFollowRepository(deps.SQL)
	commentRepo := repositories.NewPostgresCommentRepository(deps.SQL)
	likeRepo := repositories.NewPostgresLikeRepository(deps.SQL)
	commentLikeRepo := repositories.NewPostgresCommentLikeRepository(deps.SQL)
	notificationRepo := repositories.NewPostgresNotificationRepository(deps.SQL)
	messageRepo := repositories.NewPostgresMessageRepository(deps.SQL)
	deviceRepo := repositories.NewPostgresDeviceTokenRepository(deps.SQL)

	// --- Notification fan-out ---
	notifier := notify.NewService(notificationRepo, followRepo, deps.Registry)
	if deps.Offline != nil {
		notifier.WithOfflineQueue(deps.Offline)
	}
	if deps.Unread != nil {
		notifier.WithUnreadCache(deps.Unread)
	}

	if deps.Revoked == nil {
		deps.Revoked = middleware.NewMemoryDenylist()
	}
	jwtAuth := middleware.JWTAuthMiddleware(deps.JWTSecret, deps.Revoked)

	// --- Real-time socket ---
	wsHandler := realtime.NewHandler(deps.Registry, deps.WriteTimeout, deps.PongTimeout)
	e.GET("/ws", wsHandler.Serve, jwtAuth)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(userRepo, deps.JWTSecret, deps.Revoked)
	authHandler.RegisterAuthRoutes(authGroup, middleware.FirebaseAuthMiddleware(deps.FirebaseAuth), jwtAuth)

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(jwtAuth)

	handlers.NewUserHandler(userRepo, followRepo, notifier).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(followRepo, userRepo).RegisterFollowRoutes(api)
	handlers.NewPostHandler(deps.Posts, userRepo, likeRepo, commentRepo, notifier).RegisterPostRoutes(api)
	handlers.NewFeedHandler(deps.Posts, userRepo, followRepo, likeRepo).RegisterFeedRoutes(api)
	handlers.NewLikeHandler(likeRepo, deps.Posts, userRepo, notifier).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(commentRepo, commentLikeRepo, deps.Posts, userRepo, notifier).RegisterCommentRoutes(api)
	handlers.NewNotificationHandler(notifier, notificationRepo, userRepo).RegisterNotificationRoutes(api)
	handlers.NewChatHandler(messageRepo, userRepo, deps.Registry).RegisterChatRoutes(api)
	handlers.NewDeviceHandler(deviceRepo).RegisterDeviceRoutes(api)
	api.GET("/online", handlers.OnlineUsers(deps.Registry))

	logger.Log.Info("All routes configured.")
	return nil
}
