package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/anonto42/nano-social/backend/internal/middleware"
	"github.com/anonto42/nano-social/backend/internal/notify"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	"github.com/anonto42/nano-social/backend/internal/router"
	"github.com/anonto42/nano-social/backend/pkg/config"
	"github.com/anonto42/nano-social/backend/pkg/firebase"
	"github.com/anonto42/nano-social/backend/pkg/logger"
	"github.com/anonto42/nano-social/backend/validators"
	"github.com/labstack/echo/v4"
)

const unreadCacheTTL = 10 * time.Minute

func main() {
	// Load configuration
	cfg := config.Load()
	logger.Init("nano-social", cfg.Env, cfg.LogLevel)

	// Initialize database connections
	db, err := config.InitDB(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize databases")
	}
	defer db.CloseDB() // Ensure database connections are closed when main exits

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Offline notifications travel over an in-process bus to the push worker
	bus := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            100,
			BlockPublishUntilSubscriberAck: false,
		},
		logger.NewWatermillAdapter(logger.Log.WithField("component", "bus")),
	)
	defer bus.Close()

	deps := router.Dependencies{
		SQL:          db.SQL,
		Posts:        repositories.NewMongoPostRepository(db.Mongo.Database(cfg.MongoDatabase)),
		Registry:     realtime.NewRegistry(),
		JWTSecret:    cfg.JWTSecret,
		WriteTimeout: cfg.WSWriteTimeout,
		PongTimeout:  cfg.WSPongTimeout,
	}
	if db.Redis != nil {
		deps.Unread = notify.NewRedisUnreadCache(db.Redis, unreadCacheTTL)
		deps.Revoked = middleware.NewRedisDenylist(db.Redis)
	}

	// Firebase is optional: without it firebase-login answers 503 and
	// offline notifications are only stored
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Firebase disabled")
	} else {
		deps.FirebaseAuth = middleware.IDTokenVerifier(firebaseApp.AuthClient)

		queue, err := notify.StartOfflinePush(ctx, bus, bus, repositories.NewPostgresDeviceTokenRepository(db.SQL), firebase.NewPusher(firebaseApp.MessagingClient))
		if err != nil {
			logger.Log.WithError(err).Fatal("Failed to start push worker")
		}
		deps.Offline = queue
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	// Setup global middleware
	config.SetupMiddleware(e)

	// Setup routes and dependencies
	if err := router.SetupRoutes(e, deps); err != nil {
		logger.Log.WithError(err).Fatal("Failed to set up routes")
	}

	go func() {
		logger.Log.WithField("port", cfg.Port).Info("HTTP server starting")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("HTTP server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("HTTP server shutdown failed")
	}
}
