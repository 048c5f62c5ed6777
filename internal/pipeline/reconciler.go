package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/hireloop/resume-pipeline/internal/repository"
)

// Reconciler is the crash/timeout recovery sweep: rows stuck in processing
// past the staleness threshold (a worker died or its caller abandoned the
// attempt) are re-opened to pending so they become claimable again.
type Reconciler struct {
	logger    *slog.Logger
	processed repository.ProcessedDocumentRepository
	matches   repository.MatchRepository
	threshold time.Duration
	interval  time.Duration
}

func NewReconciler(
	logger *slog.Logger,
	processed repository.ProcessedDocumentRepository,
	matches repository.MatchRepository,
	threshold, interval time.Duration,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = 10 * time.Minute
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{
		logger:    logger,
		processed: processed,
		matches:   matches,
		threshold: threshold,
		interval:  interval,
	}
}

// Run sweeps on a ticker until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	r.logger.Info("reconciler started", "threshold", r.threshold, "interval", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", "error", err)
			}
		}
	}
}

// Sweep requeues everything stuck in processing past the staleness
// threshold and returns the number of re-opened rows.
func (r *Reconciler) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-r.threshold)

	docs, err := r.processed.RequeueStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	matches, err := r.matches.RequeueStale(ctx, cutoff)
	if err != nil {
		return docs, err
	}

	total := docs + matches
	if total > 0 {
		r.logger.Info("reconciliation sweep re-opened stale rows",
			"documents", docs, "matches", matches)
	}
	return total, nil
}
