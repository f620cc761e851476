package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/config"
	"scribe/internal/consumer"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/notifications"
	"scribe/internal/pipeline"
	"scribe/internal/queue"
	"scribe/internal/services/staging"
	"scribe/internal/services/transcriber"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("prepare directories: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		log.Fatalf("acquire daemon lock: %v", err)
	}
	if !locked {
		log.Fatalf("another scribed instance is already running (lock %s)", cfg.LockPath())
	}
	defer lock.Unlock() //nolint:errcheck

	store, err := jobs.Open(cfg)
	if err != nil {
		log.Fatalf("open job store: %v", err)
	}
	defer store.Close()

	q, err := queue.Open(cfg)
	if err != nil {
		log.Fatalf("open delivery queue: %v", err)
	}
	defer q.Close()

	// Jobs stuck in processing since before the stale window were abandoned
	// by an earlier daemon run; surface them as failures now.
	staleCutoff := time.Now().Add(-time.Duration(cfg.Workflow.StaleProcessingTimeout) * time.Second)
	if reclaimed, err := store.FailStaleProcessing(ctx, staleCutoff); err != nil {
		logger.Warn("reclaim stale processing failed", logging.Error(err))
	} else if reclaimed > 0 {
		logger.Info("reclaimed stale processing jobs", logging.Int64("count", reclaimed))
	}

	publisher := notifications.NewPublisher(notifications.NewService(cfg), logger)
	orchestrator := pipeline.New(
		store,
		transcriber.NewFromConfig(cfg),
		staging.NewFromConfig(cfg),
		publisher,
		logger,
	)
	loop := consumer.New(q, orchestrator, publisher, logger, consumer.Options{
		BatchSize:     cfg.Workflow.BatchSize,
		PollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		ErrorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
	})

	if err := loop.Start(ctx); err != nil {
		log.Fatalf("start consumer: %v", err)
	}
	logger.Info("scribed started",
		logging.String("jobs_db", cfg.JobDatabasePath()),
		logging.String("queue_db", cfg.QueueDatabasePath()),
	)

	<-ctx.Done()
	loop.Stop()
	logger.Info("scribed shutting down")
}
