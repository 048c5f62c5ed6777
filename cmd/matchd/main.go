package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hireloop/resume-pipeline/internal/async"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/llm/openai"
	"github.com/hireloop/resume-pipeline/internal/pipeline"
	repo "github.com/hireloop/resume-pipeline/internal/repository"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time/level
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	docsRepo := repo.NewDocumentRepository(db, logger)
	processedRepo := repo.NewProcessedDocumentRepository(db, logger)
	matchesRepo := repo.NewMatchRepository(db, logger)

	llmClient := openai.NewClient(openai.Config{
		Model:         cfg.LLM.Model,
		APIKey:        cfg.LLM.APIKey,
		BaseURL:       cfg.LLM.BaseURL,
		Temperature:   cfg.LLM.Temperature,
		Timeout:       cfg.LLM.Timeout,
		MaxInputBytes: cfg.LLM.MaxInputBytes,
		LenientOutput: true,
	}, logger)

	processor := pipeline.NewProcessor(logger, docsRepo, processedRepo, llmClient, cfg.Pipeline)
	matcher := pipeline.NewMatcher(logger, docsRepo, processedRepo, matchesRepo, llmClient, cfg.Pipeline)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ExtractTimeout*time.Duration(cfg.Pipeline.MaxAttempts+1)),
	)

	reconciler := pipeline.NewReconciler(logger, processedRepo, matchesRepo,
		cfg.Pipeline.StalenessThreshold, cfg.Pipeline.SweepInterval)
	go reconciler.Run(ctx)

	logger.Info("matchd started",
		"workers", cfg.Pipeline.Workers,
		"queue_size", cfg.Pipeline.QueueSize,
		"model", cfg.LLM.Model,
	)

	// Dispatcher: feed pending rows (freshly submitted or re-opened by the
	// reconciler) into the worker pool, and resume pending match rows inline.
	ticker := time.NewTicker(cfg.Pipeline.SweepInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			dispatch(ctx, logger, processedRepo, matchesRepo, matcher, queue, cfg.Pipeline.QueueSize)
		}
	}

	queue.Shutdown(context.Background())
	logger.Info("matchd stopped")
}

func dispatch(
	ctx context.Context,
	logger *slog.Logger,
	processed repo.ProcessedDocumentRepository,
	matches repo.MatchRepository,
	matcher *pipeline.Matcher,
	queue async.Queue,
	limit int,
) {
	rawIDs, err := processed.ListPendingRawIDs(ctx, limit)
	if err != nil {
		logger.Error("failed to list pending documents", "error", err)
	}
	for _, id := range rawIDs {
		_ = queue.Enqueue(ctx, async.Job{RawDocumentID: id, SubmittedAt: time.Now().UTC()})
	}

	matchIDs, err := matches.ListPendingIDs(ctx, limit)
	if err != nil {
		logger.Error("failed to list pending matches", "error", err)
	}
	for _, id := range matchIDs {
		if _, err := matcher.RunByID(ctx, id); err != nil {
			logger.Warn("pending match not runnable yet", "match_id", id, "error", err)
		}
	}

	if len(rawIDs) > 0 || len(matchIDs) > 0 {
		logger.Info("dispatched pending work", "documents", len(rawIDs), "matches", len(matchIDs))
	}
}
