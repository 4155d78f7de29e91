// Package main provides the API server entry point for the marketplace hub.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botique-hub/internal/api"
	"github.com/botique-hub/internal/chain"
	"github.com/botique-hub/internal/config"
	"github.com/botique-hub/internal/hub"
	"github.com/botique-hub/internal/logging"
	"github.com/botique-hub/internal/models"
	"github.com/botique-hub/internal/storage"
	"github.com/botique-hub/internal/webhook"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Initialize the payment verifier
	verifier, err := chain.NewBaseVerifier(&cfg.Chain)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize payment verifier")
	}
	defer verifier.Close()

	logger.WithField("usdcContract", cfg.Chain.USDCContract).Info("Payment verifier initialized")

	// Initialize repositories
	jobRepo := storage.NewJobRepository(postgres)
	agentRepo := storage.NewAgentRepository(postgres)
	deliveryRepo := storage.NewDeliveryRepository(postgres)
	deliveryLogRepo := storage.NewDeliveryLogRepository(clickhouse)

	// Initialize cache service
	cacheService := storage.NewCacheService(redis, cfg.Database.Redis.TTL)

	// Initialize webhook delivery client with per-attempt logging
	webhookClient := webhook.NewClient(&webhook.ClientConfig{
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		AttemptTimeout: cfg.Webhook.AttemptTimeout,
		BaseDelay:      cfg.Webhook.BaseDelay,
	}, deliveryLogRepo)

	// Initialize the generation backend for hub-side fulfillment
	var generator hub.Generator
	if cfg.Hub.GeneratorURL != "" {
		generator = hub.NewHTTPGenerator(cfg.Hub.GeneratorURL)
		logger.WithField("endpoint", cfg.Hub.GeneratorURL).Info("Generation backend configured")
	} else {
		generator = hub.GeneratorFunc(func(ctx context.Context, skill *models.Skill, input json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("no generation backend configured")
		})
		logger.Warn("No generation backend configured; agents without webhooks cannot be fulfilled")
	}

	// Initialize the coordinator
	coordinator := hub.NewCoordinator(
		hub.Config{
			JobDeadline:   cfg.Hub.JobDeadline,
			InlineTimeout: cfg.Hub.InlineTimeout,
		},
		jobRepo,
		agentRepo,
		deliveryRepo,
		verifier,
		generator,
		webhookClient,
		cfg.Webhook.Workers,
		cacheService,
	)

	logger.Info("Coordinator initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, coordinator)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	// Drain in-flight webhook deliveries before closing connections.
	coordinator.Stop()

	logger.Info("Server exited")
}
