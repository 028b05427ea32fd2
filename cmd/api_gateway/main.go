package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewardhub/settlement-engine/internal/api_gateway"
	"github.com/rewardhub/settlement-engine/internal/api_gateway/service"
	"github.com/rewardhub/settlement-engine/internal/config"
	"github.com/rewardhub/settlement-engine/internal/data/mongo"
	"github.com/rewardhub/settlement-engine/internal/data/postgres"
	"github.com/rewardhub/settlement-engine/internal/logger"
	"github.com/rewardhub/settlement-engine/internal/platform/messaging/producers"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
	"github.com/rewardhub/settlement-engine/internal/provider"
	"github.com/rewardhub/settlement-engine/internal/settlement"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for settlement events
	eventProducer, err := producers.NewSettlementEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement event producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	repos := settlement.Repositories{
		Ledger:      postgres.NewLedgerRepository(log, postgresDB),
		Withdrawals: postgres.NewWithdrawalRepository(log, postgresDB),
		Bills:       postgres.NewBillRepository(log, postgresDB),
		Payments:    postgres.NewPaymentRepository(log, postgresDB),
		Accounts:    postgres.NewPayoutAccountRepository(log, postgresDB),
		CallLog:     mongo.NewProviderLogRepository(log, mongoDB.Database()),
	}

	// Initialize provider client and the settlement engine
	providerClient := provider.NewHTTPClient(log, &cfg.Provider)

	engine, err := settlement.NewEngine(postgresDB, repos, providerClient, eventProducer, cfg, log)
	if err != nil {
		log.Error("Failed to initialize settlement engine", "error", err)
		os.Exit(1)
	}

	// Initialize read-side query service
	queryService := service.NewQueryService(log, repos.Withdrawals, repos.Bills, repos.Payments, repos.CallLog)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, engine.Intake, engine.Admin, queryService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no new dispatches are accepted
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Drain in-flight dispatch jobs
	engine.Dispatcher.Close()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
