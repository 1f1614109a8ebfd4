// Package main is the entry point for the skuforge backfill worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"skuforge/internal/app"
	"skuforge/internal/config"
	"skuforge/internal/infrastructure/selector"
	"skuforge/internal/worker"
	"skuforge/pkg/logger"
)

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Info("starting skuforge worker")

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	filter, err := selector.Compile(cfg.Worker.Filter)
	if err != nil {
		log.Fatalw("invalid worker filter", "error", err)
	}

	// Only the postgres idempotency store needs sweeping.
	var cleaner worker.Cleaner
	if c, ok := application.Idempotency.(worker.Cleaner); ok {
		cleaner = c
	}

	backfill := worker.NewBackfill(application.Catalog, application.Service, cleaner, worker.Config{
		Interval:  cfg.Worker.Interval,
		BatchSize: cfg.Worker.BatchSize,
		Overwrite: cfg.Worker.Overwrite,
		Filter:    filter,
	}, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		backfill.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
