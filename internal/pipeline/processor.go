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

// Processor drives a raw document through keyword extraction: lazily
// creates the processed row, claims it, calls the extractor with a retry
// budget, and persists the terminal transition.
type Processor struct {
	logger    *slog.Logger
	docs      repository.DocumentRepository
	processed repository.ProcessedDocumentRepository
	extractor llm.KeywordExtractor
	cfg       common.PipelineConfig
}

func NewProcessor(
	logger *slog.Logger,
	docs repository.DocumentRepository,
	processed repository.ProcessedDocumentRepository,
	extractor llm.KeywordExtractor,
	cfg common.PipelineConfig,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = 60 * time.Second
	}
	return &Processor{
		logger:    logger,
		docs:      docs,
		processed: processed,
		extractor: extractor,
		cfg:       cfg,
	}
}

// EnsureProcessed is idempotent and safe under concurrent calls for the
// same document: at most one extraction is in flight per document at any
// time. If another caller holds the claim, the current state is returned
// without re-invoking extraction. A failed document is re-claimed and
// retried.
func (p *Processor) EnsureProcessed(ctx context.Context, rawDocumentID uuid.UUID) (*entity.ProcessedDocument, error) {
	raw, err := p.docs.GetByID(ctx, rawDocumentID)
	if err != nil {
		return nil, err
	}

	doc, err := p.processed.GetOrCreate(ctx, raw.ID)
	if err != nil {
		return nil, err
	}
	if doc.Status == constants.StatusCompleted {
		return doc, nil
	}

	claimed, err := p.processed.Claim(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Lost the race: someone else is extracting, or completed in
		// between. Report the observed state, never double-invoke.
		p.logger.Debug("claim lost, returning current state", "document_id", doc.ID)
		return p.processed.GetByID(ctx, doc.ID)
	}

	keywords, extractErr := p.extractWithRetry(ctx, raw)
	if extractErr != nil {
		if err := p.processed.FinishFailure(ctx, doc.ID, extractErr.Error()); err != nil {
			return nil, err
		}
		return p.processed.GetByID(ctx, doc.ID)
	}

	if err := p.processed.FinishSuccess(ctx, doc.ID, keywords); err != nil {
		return nil, err
	}
	return p.processed.GetByID(ctx, doc.ID)
}

// extractWithRetry applies the orchestration policy: transient failures are
// retried with exponential backoff up to MaxAttempts, malformed output gets
// MalformedRetries extra attempts, validation failures are terminal
// immediately.
func (p *Processor) extractWithRetry(ctx context.Context, raw *entity.RawDocument) (entity.KeywordSet, error) {
	var (
		lastErr   error
		malformed int
	)
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
		keywords, _, err := p.extractor.ExtractKeywords(actx, llm.ExtractRequest{
			Kind: raw.Kind,
			Text: raw.Content,
		})
		cancel()

		if err == nil {
			return keywords.Normalize(), nil
		}
		lastErr = err

		switch {
		case errors.Is(err, common.ErrInputTooLarge), errors.Is(err, common.ErrInvalidInput):
			return entity.KeywordSet{}, err
		case errors.Is(err, common.ErrMalformedOutput):
			malformed++
			if malformed > p.cfg.MalformedRetries {
				return entity.KeywordSet{}, err
			}
		case common.IsRetryable(err):
			// transient, stays within the attempt budget
		default:
			return entity.KeywordSet{}, err
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		backoff := p.cfg.BackoffBase << (attempt - 1)
		p.logger.Warn("extraction attempt failed, backing off",
			"document_id", raw.ID, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return entity.KeywordSet{}, fmt.Errorf("extraction abandoned: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}
	return entity.KeywordSet{}, fmt.Errorf("retry budget exhausted after %d attempts: %w", p.cfg.MaxAttempts, lastErr)
}
