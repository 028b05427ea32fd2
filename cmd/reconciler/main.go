package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rewardhub/settlement-engine/internal/config"
	"github.com/rewardhub/settlement-engine/internal/data/mongo"
	"github.com/rewardhub/settlement-engine/internal/data/postgres"
	"github.com/rewardhub/settlement-engine/internal/logger"
	"github.com/rewardhub/settlement-engine/internal/platform/messaging/producers"
	"github.com/rewardhub/settlement-engine/internal/platform/persistence"
	"github.com/rewardhub/settlement-engine/internal/provider"
	"github.com/rewardhub/settlement-engine/internal/reconciler"
	"github.com/rewardhub/settlement-engine/internal/settlement"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("reconciler")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Reconciler",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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
	lockRepo := postgres.NewWorkerLockRepository(log, postgresDB)

	// Initialize provider client and the settlement engine; the reconciler
	// shares the engine's outcome handler so terminal transitions behave
	// identically on both paths
	providerClient := provider.NewHTTPClient(log, &cfg.Provider)

	engine, err := settlement.NewEngine(postgresDB, repos, providerClient, eventProducer, cfg, log)
	if err != nil {
		log.Error("Failed to initialize settlement engine", "error", err)
		os.Exit(1)
	}

	rec := reconciler.New(
		&cfg.Reconciler,
		repos.Payments,
		providerClient,
		engine.Outcome,
		repos.CallLog,
		lockRepo,
		log.With("component", "reconciler"),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rec.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	<-quit
	log.Info("Shutdown signal received")

	// Cancel the application context and wait for the poll loop to stop
	cancelAppCtx()
	wg.Wait()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	engine.Dispatcher.Close()

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing settlement event producer", "error", err)
	}

	postgresDB.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	log.Info("Reconciler shutdown completed")
}
