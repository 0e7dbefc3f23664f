package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/offline-payment-sync/internal/components"
	"github.com/offline-payment-sync/internal/config"
	"github.com/offline-payment-sync/internal/connectivity"
	"github.com/offline-payment-sync/internal/logger"
	"github.com/offline-payment-sync/internal/platform/messaging/consumers"
	"github.com/offline-payment-sync/internal/sync_engine"
)

var configName = kingpin.Flag("config", "Base name of the .env file under ./configs or the working directory.").
	Default("sync_worker").
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

	log.Info("Starting Sync Worker",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	comps, err := components.CreateComponents(appCtx, log, cfg)
	if err != nil {
		log.Error("Failed to initialize components", "error", err)
		os.Exit(1)
	}

	oracle := connectivity.NewOracle(cfg.Connectivity.StrengthThreshold)

	// Without the feed this process never hears about the link; it attempts
	// every scheduled pass and lets settlement failures consume attempts.
	var feedConsumer *consumers.KafkaConsumer
	if cfg.Connectivity.FeedEnabled {
		feedConsumer = consumers.NewKafkaConsumer(log, &cfg.Kafka, cfg.Connectivity.FeedTopic)
	} else {
		log.Warn("Connectivity feed disabled, assuming the processor is reachable")
		oracle.SetReachable(true)
	}

	scheduler := sync_engine.NewScheduler(
		comps.Engine,
		oracle,
		comps.Notifier,
		log.With("component", "scheduler"),
		cfg.Sync.PollingInterval,
		cfg.Connectivity.SyncOnRestore,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	if feedConsumer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("Starting connectivity feed consumer",
				"topic", cfg.Connectivity.FeedTopic,
				"group", cfg.Kafka.ConsumerGroup,
			)
			if err := feedConsumer.Run(appCtx, connectivity.FeedHandler(log.With("component", "connectivity_feed"), oracle)); err != nil {
				errChan <- fmt.Errorf("connectivity feed consumer error: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context; a running pass releases its claims
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	if feedConsumer != nil {
		if err = feedConsumer.Close(); err != nil {
			log.Error("Error closing connectivity feed consumer", "error", err)
		}
	}

	comps.Close(shutdownCtx)

	// Final status
	if serviceErr != nil {
		log.Error("Sync Worker shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Sync Worker shutdown completed with errors")
	} else {
		log.Info("Sync Worker shutdown completed successfully")
	}
}
