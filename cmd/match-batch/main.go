package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/export"
	"github.com/hireloop/resume-pipeline/internal/llm/openai"
	"github.com/hireloop/resume-pipeline/internal/pipeline"
	repo "github.com/hireloop/resume-pipeline/internal/repository"
	"github.com/hireloop/resume-pipeline/internal/service"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags
	var (
		inmem  = flag.Bool("inmem", false, "use in-memory SQLite database")
		resume = flag.String("resume", "", "path to a resume text file (required)")
		jobs   = flag.String("jobs", "", "directory of job-description text files (required)")
		out    = flag.String("out", "", "output XLSX file path (optional, defaults to jobs parent directory)")
		force  = flag.Bool("force", false, "recompute matches that already completed")
	)
	flag.Parse()

	if *resume == "" || *jobs == "" {
		printError("Error: --resume and --jobs are required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*jobs), "matches.xlsx")
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()

	ctx := context.Background()

	db, cleanup, err := openStore(ctx, cfg, *inmem, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Wire repositories
	sessionsRepo := repo.NewSessionRepository(db, logger)
	docsRepo := repo.NewDocumentRepository(db, logger)
	processedRepo := repo.NewProcessedDocumentRepository(db, logger)
	matchesRepo := repo.NewMatchRepository(db, logger)

	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY is required for batch matching")
		os.Exit(2)
	}
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

	// Batch mode is synchronous: no queue, EnsureProcessed blocks.
	svc := service.NewPipelineService(logger, sessionsRepo, docsRepo, processedRepo, matchesRepo,
		processor, matcher, nil, cfg.LLM.MaxInputBytes)

	sessionID, err := svc.CreateSession(ctx)
	if err != nil {
		logger.Error("failed to create session", "error", err)
		os.Exit(1)
	}
	logger.Info("using session", "id", sessionID)

	resumeID, err := submitFile(ctx, svc, sessionID, constants.KindResume, *resume)
	if err != nil {
		logger.Error("failed to submit resume", "path", *resume, "error", err)
		os.Exit(1)
	}
	if _, err := svc.EnsureProcessed(ctx, resumeID); err != nil {
		logger.Error("failed to process resume", "error", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(*jobs)
	if err != nil {
		logger.Error("failed to read jobs directory", "dir", *jobs, "error", err)
		os.Exit(1)
	}

	matched := 0
	failures := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(*jobs, entry.Name())

		jobID, err := submitFile(ctx, svc, sessionID, constants.KindJob, path)
		if err != nil {
			logger.Error("failed to submit job description", "path", path, "error", err)
			failures++
			continue
		}
		if _, err := svc.EnsureProcessed(ctx, jobID); err != nil {
			logger.Error("failed to process job description", "path", path, "error", err)
			failures++
			continue
		}

		matchID, err := svc.RequestMatch(ctx, resumeID, jobID, *force)
		if err != nil {
			logger.Error("failed to match", "path", path, "error", err)
			failures++
			continue
		}

		result, err := svc.GetResult(ctx, matchID)
		if err != nil {
			logger.Error("failed to read match result", "match_id", matchID, "error", err)
			failures++
			continue
		}
		if result.Status == constants.StatusCompleted {
			matched++
			logger.Info("match complete", "job", entry.Name(), "score", *result.Score)
		} else {
			failures++
			logger.Warn("match did not complete", "job", entry.Name(), "status", result.Status)
		}
	}

	// Export to XLSX
	logger.Info("exporting to XLSX", "output", *out)
	exportService := export.NewService(matchesRepo, logger)
	xlsxBytes, err := exportService.ExportMatchesXLSX(ctx, sessionID)
	if err != nil {
		logger.Error("failed to export matches", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Batch matching complete!\n")
	fmt.Printf("- Jobs matched: %d\n", matched)
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", *out)
}

// openStore picks the embedded store for -inmem runs and Postgres otherwise.
func openStore(ctx context.Context, cfg *common.Config, inmem bool, logger *slog.Logger) (*sql.DB, func(), error) {
	if inmem {
		db, err := repo.OpenSQLite(repo.InMemoryDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	}

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
		return nil, nil, err
	}
	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		repo.Close(db, pool, logger)
		return nil, nil, err
	}
	return db, func() { repo.Close(db, pool, logger) }, nil
}

func submitFile(ctx context.Context, svc *service.PipelineService, sessionID uuid.UUID, kind constants.DocumentKind, path string) (uuid.UUID, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return uuid.Nil, err
	}
	return svc.SubmitDocument(ctx, sessionID, kind, string(content))
}
