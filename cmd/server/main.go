package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/idest-edu/assignment-gateway/internal/backend"
	"github.com/idest-edu/assignment-gateway/internal/config"
	"github.com/idest-edu/assignment-gateway/internal/events"
	"github.com/idest-edu/assignment-gateway/internal/handlers"
	"github.com/idest-edu/assignment-gateway/internal/identity"
	"github.com/idest-edu/assignment-gateway/internal/services"
	"github.com/idest-edu/assignment-gateway/internal/session"
	"github.com/idest-edu/assignment-gateway/internal/utils"
	"github.com/idest-edu/assignment-gateway/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	var logger utils.Logger
	if cfg.Environment == "development" {
		logger = utils.NewDevelopmentLogger()
		gin.SetMode(gin.DebugMode)
	} else {
		logger = utils.NewDefaultLogger()
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting assignment gateway",
		"environment", cfg.Environment,
		"backend", cfg.BackendBaseURL)

	// Session storage
	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		logger.LogError(err, "Failed to connect to Redis")
		os.Exit(1)
	}
	defer redisClient.Close()
	sessionStore := session.NewRedisStore(redisClient, cfg.SessionTTL, logger)

	// Content backend
	backendClient := backend.NewHTTPClient(cfg.BackendBaseURL, &http.Client{Timeout: cfg.BackendTimeout}, logger)

	// Event publishing; without brokers events stay local
	var publisher events.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := events.NewKafkaEventPublisher(events.PublisherConfig{
			KafkaBrokers: cfg.KafkaBrokers,
			TopicName:    cfg.KafkaTopic,
			Logger:       slog.Default(),
		})
		if err != nil {
			logger.LogError(err, "Failed to create Kafka publisher")
			os.Exit(1)
		}
		publisher = kafkaPublisher
	} else {
		logger.Warn("No Kafka brokers configured, events will not leave the process")
		publisher = events.NewMockEventPublisher(slog.Default())
	}
	defer publisher.Close()

	resolver := identity.NewCasdoorResolver(cfg)
	validator := utils.NewValidator()

	attemptService := services.NewAttemptService(backendClient, sessionStore, publisher, logger, validator)
	resultService := services.NewResultService(backendClient, sessionStore, logger)

	router := gin.New()
	router.Use(gin.Recovery())

	handlerManager := handlers.NewHandlerManager(attemptService, resultService, resolver, validator, logger)
	handlerManager.SetupRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.LogError(err, "HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.LogError(err, "Forced shutdown")
	}
}
