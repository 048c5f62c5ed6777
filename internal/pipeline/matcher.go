package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/entity"
	"github.com/hireloop/resume-pipeline/internal/llm"
	"github.com/hireloop/resume-pipeline/internal/repository"
)

// Matcher orchestrates scoring a completed resume against a completed job
// and producing the improved-resume artifact, reusing the claim lifecycle
// of processed documents for its own rows.
type Matcher struct {
	logger    *slog.Logger
	docs      repository.DocumentRepository
	processed repository.ProcessedDocumentRepository
	matches   repository.MatchRepository
	improver  llm.ResumeImprover
	cfg       common.PipelineConfig
}

func NewMatcher(
	logger *slog.Logger,
	docs repository.DocumentRepository,
	processed repository.ProcessedDocumentRepository,
	matches repository.MatchRepository,
	improver llm.ResumeImprover,
	cfg common.PipelineConfig,
) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.MatchTimeout <= 0 {
		cfg.MatchTimeout = 90 * time.Second
	}
	return &Matcher{
		logger:    logger,
		docs:      docs,
		processed: processed,
		matches:   matches,
		improver:  improver,
		cfg:       cfg,
	}
}

// RequestMatch matches a resume against a job, both referenced by their raw
// document ids. Both must be completed, otherwise it fails with NotReady
// and creates no row. An existing completed result is returned as-is unless
// force requests recomputation.
func (m *Matcher) RequestMatch(ctx context.Context, resumeRawID, jobRawID uuid.UUID, force bool) (*entity.MatchResult, error) {
	resumeDoc, resumeRaw, err := m.ready(ctx, resumeRawID, constants.KindResume)
	if err != nil {
		return nil, err
	}
	jobDoc, jobRaw, err := m.ready(ctx, jobRawID, constants.KindJob)
	if err != nil {
		return nil, err
	}

	result, err := m.matches.GetOrCreate(ctx, resumeDoc.ID, jobDoc.ID)
	if err != nil {
		return nil, err
	}
	if result.Status == constants.StatusCompleted {
		if !force {
			return result, nil
		}
		if err := m.matches.Reopen(ctx, result.ID); err != nil {
			return nil, err
		}
	}

	return m.run(ctx, result.ID, resumeRaw, jobRaw, resumeDoc, jobDoc)
}

// RunByID resumes an existing match row, used by the dispatcher for rows
// the reconciler re-opened. It re-resolves and re-checks both documents.
func (m *Matcher) RunByID(ctx context.Context, matchID uuid.UUID) (*entity.MatchResult, error) {
	result, err := m.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if result.Status == constants.StatusCompleted {
		return result, nil
	}

	resumeDoc, resumeRaw, err := m.readyByDocID(ctx, result.ResumeDocumentID)
	if err != nil {
		return nil, err
	}
	jobDoc, jobRaw, err := m.readyByDocID(ctx, result.JobDocumentID)
	if err != nil {
		return nil, err
	}
	return m.run(ctx, result.ID, resumeRaw, jobRaw, resumeDoc, jobDoc)
}

func (m *Matcher) run(
	ctx context.Context,
	matchID uuid.UUID,
	resumeRaw, jobRaw *entity.RawDocument,
	resumeDoc, jobDoc *entity.ProcessedDocument,
) (*entity.MatchResult, error) {
	claimed, err := m.matches.Claim(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		m.logger.Debug("match claim lost, returning current state", "match_id", matchID)
		return m.matches.GetByID(ctx, matchID)
	}

	improved, improveErr := m.improveWithRetry(ctx, llm.ImproveRequest{
		ResumeText:     resumeRaw.Content,
		JobText:        jobRaw.Content,
		ResumeKeywords: resumeDoc.Keywords,
		JobKeywords:    jobDoc.Keywords,
	})
	if improveErr != nil {
		if err := m.matches.FinishFailure(ctx, matchID, improveErr.Error()); err != nil {
			return nil, err
		}
		return m.matches.GetByID(ctx, matchID)
	}

	if err := m.matches.FinishSuccess(ctx, matchID, improved.Score, improved.ImprovedResume); err != nil {
		return nil, err
	}
	return m.matches.GetByID(ctx, matchID)
}

// ready resolves a raw document and enforces the matching preconditions:
// right kind, extraction completed.
func (m *Matcher) ready(ctx context.Context, rawID uuid.UUID, want constants.DocumentKind) (*entity.ProcessedDocument, *entity.RawDocument, error) {
	raw, err := m.docs.GetByID(ctx, rawID)
	if err != nil {
		return nil, nil, err
	}
	if raw.Kind != want {
		return nil, nil, fmt.Errorf("%w: document %s is a %s, expected %s",
			common.ErrInvalidInput, rawID, raw.Kind, want)
	}
	doc, err := m.processed.GetByRawDocumentID(ctx, rawID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: document %s has not been processed", common.ErrNotReady, rawID)
		}
		return nil, nil, err
	}
	if doc.Status != constants.StatusCompleted {
		return nil, nil, fmt.Errorf("%w: document %s is %s", common.ErrNotReady, rawID, doc.Status)
	}
	return doc, raw, nil
}

func (m *Matcher) readyByDocID(ctx context.Context, docID uuid.UUID) (*entity.ProcessedDocument, *entity.RawDocument, error) {
	doc, err := m.processed.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.Status != constants.StatusCompleted {
		return nil, nil, fmt.Errorf("%w: processed document %s is %s", common.ErrNotReady, docID, doc.Status)
	}
	raw, err := m.docs.GetByID(ctx, doc.RawDocumentID)
	if err != nil {
		return nil, nil, err
	}
	return doc, raw, nil
}

func (m *Matcher) improveWithRetry(ctx context.Context, req llm.ImproveRequest) (llm.ImproveResult, error) {
	var (
		lastErr   error
		malformed int
	)
	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, m.cfg.MatchTimeout)
		result, _, err := m.improver.Improve(actx, req)
		cancel()

		if err == nil {
			return result, nil
		}
		lastErr = err

		switch {
		case errors.Is(err, common.ErrInputTooLarge), errors.Is(err, common.ErrInvalidInput):
			return llm.ImproveResult{}, err
		case errors.Is(err, common.ErrMalformedOutput):
			malformed++
			if malformed > m.cfg.MalformedRetries {
				return llm.ImproveResult{}, err
			}
		case common.IsRetryable(err):
		default:
			return llm.ImproveResult{}, err
		}

		if attempt == m.cfg.MaxAttempts {
			break
		}
		backoff := m.cfg.BackoffBase << (attempt - 1)
		m.logger.Warn("improve attempt failed, backing off",
			"attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return llm.ImproveResult{}, fmt.Errorf("matching abandoned: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return llm.ImproveResult{}, fmt.Errorf("retry budget exhausted after %d attempts: %w", m.cfg.MaxAttempts, lastErr)
}
