package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/offline-payment-sync/internal/api_gateway"
	"github.com/offline-payment-sync/internal/api_gateway/service"
	"github.com/offline-payment-sync/internal/components"
	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/logger"
	"github.com/offline-payment-sync/internal/platform/messaging/producers"
	"github.com/offline-payment-sync/internal/sync_engine"
)

var configName = kingpin.Flag("config", "Base name of the .env file under ./configs or the working directory.").
	Default("api_gateway").
	String()

func main() {
	kingpin.Parse()

	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig(*configName)
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Store, audit log, notifications, settlement and the sync engine
	comps, err := components.CreateComponents(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize components", "error", err)
		os.Exit(1)
	}

	oracle := connectivity.NewOracle(cfg.Connectivity.StrengthThreshold)

	// Observations reported here are shared with the sync worker
	var observationPublisher service.ObservationPublisher
	var connectivityProducer *producers.ConnectivityProducer
	if cfg.Connectivity.FeedEnabled {
		connectivityProducer, err = producers.NewConnectivityProducer(log, &cfg.Kafka, cfg.Connectivity.FeedTopic)
		if err != nil {
			log.Error("Failed to initialize connectivity feed producer", "error", err)
			comps.Close(context.Background())
			os.Exit(1)
		}
		observationPublisher = connectivityProducer
	}

	// Initialize services
	paymentService := service.NewPaymentService(
		log,
		comps.Store,
		oracle,
		comps.Settler,
		comps.Notifier,
		comps.Engine,
		comps.Audit,
		cfg.Sync.MaxRetries,
		cfg.Settlement.Timeout,
	)
	connectivityService := service.NewConnectivityService(log, oracle, comps.Audit, observationPublisher)

	// Passes here only follow connectivity restores; the sync worker owns the periodic ones
	scheduler := sync_engine.NewScheduler(
		comps.Engine,
		oracle,
		comps.Notifier,
		log.With("component", "scheduler"),
		0,
		cfg.Connectivity.SyncOnRestore,
	)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, paymentService, connectivityService)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(appCtx)
	}()

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

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting requests first so in-flight submissions finish against live components
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Cancel the application context; a running pass releases its claims
	cancelAppCtx()

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()
	select {
	case <-wgChan:
		log.Info("Sync scheduler stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached while waiting for the sync scheduler")
	}

	if connectivityProducer != nil {
		if err := connectivityProducer.Close(); err != nil {
			log.Error("Error closing connectivity feed producer", "error", err)
		}
	}

	comps.Close(shutdownCtx)

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
