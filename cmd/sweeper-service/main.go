package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/taskhive/taskhive-be/internal/config"
	"github.com/taskhive/taskhive-be/internal/marketplace/confirm"
	"github.com/taskhive/taskhive-be/internal/marketplace/escrow"
	"github.com/taskhive/taskhive-be/internal/marketplace/events"
	"github.com/taskhive/taskhive-be/internal/marketplace/jobs"
	"github.com/taskhive/taskhive-be/internal/marketplace/storage"
	"github.com/taskhive/taskhive-be/internal/sweeper"
	"github.com/taskhive/taskhive-be/shared/logger"
	"github.com/taskhive/taskhive-be/shared/postgresql"
	"github.com/taskhive/taskhive-be/shared/rabbitmq"
	"github.com/taskhive/taskhive-be/shared/redisclient"
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
	defaultConfigPath := os.Getenv("SWEEPER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/sweeper-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateSweeperConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	appLogger = appLogger.ForService(cfg.App.Name, cfg.App.Version)

	appLogger.Info("Starting sweeper service",
		slog.String("environment", cfg.App.Environment),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	// A Redis-backed lock keeps concurrent sweeper instances from
	// running the same pass. Single-instance deployments can opt out.
	var locker sweeper.Locker = &sweeper.NoopLocker{}
	if cfg.Sweeper.UseRedisLock {
		redisClient, err := redisclient.NewClient(&redisclient.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()

		locker = sweeper.NewRedisLocker(redisClient.GetRedis(), appLogger.Logger)
	}

	// Wire the marketplace services the sweeps drive
	store := storage.NewStorage(dbClient, appLogger.Logger)

	dispatcher := events.NewDispatcher(
		rabbitClient,
		&events.LogSender{Logger: appLogger.Logger},
		&events.LogGeoIndexer{Logger: appLogger.Logger},
		store,
		appLogger.Logger,
	)

	codeManager := confirm.NewManager(store, confirm.Config{
		TTL:         cfg.Marketplace.CodeTTL,
		MaxAttempts: cfg.Marketplace.CodeMaxAttempts,
	}, appLogger.Logger)

	escrowLedger := escrow.NewLedger(store, codeManager, appLogger.Logger)

	jobService := jobs.NewService(store, codeManager, escrowLedger, dispatcher, jobs.Config{
		PenaltyThreshold:     cfg.Marketplace.PenaltyThreshold,
		PenaltyBlockDuration: cfg.Marketplace.PenaltyBlockDuration,
		ExpireAfter:          cfg.Marketplace.JobExpireAfter,
		ExpireBatchSize:      cfg.Marketplace.JobExpireBatchSize,
	}, appLogger.Logger)

	sweeperInstance := sweeper.NewSweeper(locker, jobService, store, dispatcher, sweeper.Config{
		Schedule:         cfg.Sweeper.Schedule,
		LockTTL:          cfg.Sweeper.LockTTL,
		SweepTimeout:     cfg.Sweeper.SweepTimeout,
		MaxRetries:       cfg.Sweeper.MaxRetries,
		BatchSize:        cfg.Sweeper.BatchSize,
		RetryConcurrency: cfg.Sweeper.RetryConcurrency,
	}, appLogger.Logger)

	if err := sweeperInstance.Start(); err != nil {
		return fmt.Errorf("failed to start sweeper: %w", err)
	}

	appLogger.Info("Sweeper service started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Stop waits for in-flight sweeps to finish
	done := make(chan struct{})
	go func() {
		sweeperInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Sweeper stopped gracefully")
	case <-time.After(30 * time.Second):
		appLogger.Warn("Sweeper shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Sweeper service shutdown complete")
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

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
