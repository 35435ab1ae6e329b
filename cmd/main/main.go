package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"umap-replay/src/backend"
	"umap-replay/src/cluster"
	"umap-replay/src/config"
	"umap-replay/src/interfaces"
	"umap-replay/src/logger"
	"umap-replay/src/playback"
	"umap-replay/src/server"
	"umap-replay/src/storage"
	"umap-replay/src/timecache"
	"umap-replay/src/timerange"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "./config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config.LogLevel, config.Name)

	// 2. Frame history store
	var store interfaces.IFrameStore

	switch config.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresFrameStore(config.MConfig, appLogger)
	case "none":
		store = nil
	default:
		// Default to SQLite
		store, err = storage.NewSQLiteFrameStore(config.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init frame store: %v", err)
	}
	if store != nil {
		if err := store.Initialize(); err != nil {
			appLogger.Critical("Failed to migrate frame store: %v", err)
		}
	}

	// 3. Playback core
	var backendClient interfaces.IBackendClient = backend.NewClient(config.MConfig, logger.NewLogger(config.LogLevel, "Backend"))

	times := timecache.NewTimeCache(backendClient, logger.NewLogger(config.LogLevel, "TimeCache"))
	clusters := cluster.NewStore(backendClient, logger.NewLogger(config.LogLevel, "ClusterStore"))

	srv := server.NewReplayServer(config.MConfig, appLogger, backendClient, clusters, nil, nil, times, store)

	scheduler := playback.NewScheduler(config.MConfig, backendClient, clusters, times, srv, logger.NewLogger(config.LogLevel, "Scheduler"))
	resolver := timerange.NewResolver(backendClient, times, scheduler, logger.NewLogger(config.LogLevel, "TimeRangeResolver"))

	srv.Scheduler = scheduler
	srv.Resolver = resolver

	// A stale assignment must never keep playing
	clusters.OnInvalidate(scheduler.HandleInvalidate)

	// 4. Initial instrument selection: default to the backend catalogue so
	// the viewer is usable before any explicit selection arrives
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(config.Backend.RequestTimeout)*time.Second)
	codes, err := backendClient.ListInstruments(ctx)
	cancel()
	if err != nil {
		appLogger.Warning("Initial instrument fetch failed: %v", err)
	} else {
		scheduler.SetInstruments(codes)
		appLogger.Info("Loaded %d instruments from backend", len(codes))
	}

	// 5. Start Server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	appLogger.Info("Initialization complete.")

	// 6. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	scheduler.Pause()
	if store != nil {
		if err := store.Close(); err != nil {
			appLogger.Warning("Frame store close failed: %v", err)
		}
	}
}
