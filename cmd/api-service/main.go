package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/strang-ai/strang-backend/internal/api/handler"
	"github.com/strang-ai/strang-backend/internal/api/router"
	"github.com/strang-ai/strang-backend/internal/config"
	"github.com/strang-ai/strang-backend/internal/jobs"
	"github.com/strang-ai/strang-backend/internal/pipeline"
	"github.com/strang-ai/strang-backend/internal/services"
	"github.com/strang-ai/strang-backend/shared/logger"
	"github.com/strang-ai/strang-backend/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("STRANG_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting Strang video backend",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Vendor clients. A missing API key disables the client; the affected
	// endpoints report the configuration error instead of failing at boot.
	var groqClient *services.GroqClient
	if cfg.Groq.APIKey != "" {
		groqClient, err = services.NewGroqClient(&services.GroqConfig{
			APIKey:        cfg.Groq.APIKey,
			BaseURL:       cfg.Groq.BaseURL,
			Model:         cfg.Groq.Model,
			Temperature:   cfg.Groq.Temperature,
			MaxTokens:     cfg.Groq.MaxTokens,
			Timeout:       cfg.Groq.Timeout,
			RetryAttempts: cfg.Groq.RetryAttempts,
			RetryInterval: cfg.Groq.RetryInterval,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize groq client: %w", err)
		}
		appLogger.Info("Groq client initialized",
			slog.String("model", cfg.Groq.Model),
		)
	} else {
		appLogger.Warn("GROQ_API_KEY not set, script generation disabled")
	}

	var heygenClient *services.HeyGenClient
	if cfg.HeyGen.APIKey != "" {
		heygenClient, err = services.NewHeyGenClient(&services.HeyGenConfig{
			APIKey:       cfg.HeyGen.APIKey,
			BaseURL:      cfg.HeyGen.BaseURL,
			AvatarID:     cfg.HeyGen.AvatarID,
			VoiceID:      cfg.HeyGen.VoiceID,
			VideoWidth:   cfg.HeyGen.VideoWidth,
			VideoHeight:  cfg.HeyGen.VideoHeight,
			PollInterval: cfg.HeyGen.PollInterval,
			Timeout:      cfg.HeyGen.Timeout,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize heygen client: %w", err)
		}
		appLogger.Info("HeyGen client initialized")
	} else {
		appLogger.Warn("HEYGEN_API_KEY not set, video rendering disabled")
	}

	// Optional terminal job event broker
	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		appLogger.Info("RabbitMQ connection established")
	}

	// Job orchestration core
	hub := jobs.NewHub(appLogger.Logger)
	var publisher jobs.EventPublisher
	if rabbitClient != nil {
		publisher = rabbitClient
	}
	manager := jobs.NewManager(appLogger.Logger, hub, publisher, cfg.Jobs.Concurrency)

	var generator *pipeline.Generator
	if groqClient != nil && heygenClient != nil {
		generator = pipeline.NewGenerator(groqClient, heygenClient, manager, appLogger.Logger)
	}

	// Initialize router
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r := router.SetupRouter(&handler.Dependencies{
		Logger:    appLogger.Logger,
		Manager:   manager,
		Generator: generator,
		Groq:      groqClient,
		HeyGen:    heygenClient,
		AppName:   cfg.App.Name,
		Version:   cfg.App.Version,
	})

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("Strang backend is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer func() {
		cancel()
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initRabbitMQ initializes the job event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.ExchangeName,
		ExchangeType:       cfg.ExchangeType,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.RetryAttempts,
		RetryInterval:      cfg.RetryInterval,
		Heartbeat:          cfg.Heartbeat,
		PublishRetries:     cfg.PublishRetries,
		PublishRetryDelay:  cfg.PublishRetryDelay,
		PublishBackoffMult: cfg.PublishBackoffMult,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
