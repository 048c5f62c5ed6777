package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/async"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/pipeline"
	"github.com/hireloop/resume-pipeline/internal/repository"
)

// StatusView is the polled processing state of one document. Callers only
// ever see the four statuses plus an optional error string.
type StatusView struct {
	ID     uuid.UUID                  `json:"id"`
	Status constants.ProcessingStatus `json:"status"`
	Error  *string                    `json:"error,omitempty"`
}

// ResultView is the polled state of one match result.
type ResultView struct {
	ID             uuid.UUID                  `json:"id"`
	Status         constants.ProcessingStatus `json:"status"`
	Score          *float64                   `json:"score,omitempty"`
	ImprovedResume *string                    `json:"improved_resume,omitempty"`
	Error          *string                    `json:"error,omitempty"`
}

// PipelineService is the only surface the (external) transport layer may
// call. Errors cross this boundary as gRPC status errors.
type PipelineService struct {
	logger        *slog.Logger
	sessions      repository.SessionRepository
	docs          repository.DocumentRepository
	processed     repository.ProcessedDocumentRepository
	matches       repository.MatchRepository
	processor     *pipeline.Processor
	matcher       *pipeline.Matcher
	queue         async.Queue // optional; nil means process synchronously
	maxInputBytes int
}

func NewPipelineService(
	logger *slog.Logger,
	sessions repository.SessionRepository,
	docs repository.DocumentRepository,
	processed repository.ProcessedDocumentRepository,
	matches repository.MatchRepository,
	processor *pipeline.Processor,
	matcher *pipeline.Matcher,
	queue async.Queue,
	maxInputBytes int,
) *PipelineService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineService{
		logger:        logger,
		sessions:      sessions,
		docs:          docs,
		processed:     processed,
		matches:       matches,
		processor:     processor,
		matcher:       matcher,
		queue:         queue,
		maxInputBytes: maxInputBytes,
	}
}

// CreateSession opens a new owning session for submitted documents.
func (s *PipelineService) CreateSession(ctx context.Context) (uuid.UUID, error) {
	sess, err := s.sessions.Create(ctx)
	if err != nil {
		return uuid.Nil, common.GRPCError(err)
	}
	return sess.ID, nil
}

// DeleteSession removes a session and everything it owns.
func (s *PipelineService) DeleteSession(ctx context.Context, sessionID uuid.UUID) error {
	return common.GRPCError(s.sessions.Delete(ctx, sessionID))
}

// SubmitDocument validates and stores a raw resume or job-description text
// and returns its id. Processing starts on the first EnsureProcessed call.
func (s *PipelineService) SubmitDocument(ctx context.Context, sessionID uuid.UUID, kind constants.DocumentKind, text string) (uuid.UUID, error) {
	if err := common.ValidateSubmission(kind, text, s.maxInputBytes); err != nil {
		return uuid.Nil, common.GRPCError(err)
	}
	if _, err := s.sessions.GetByID(ctx, sessionID); err != nil {
		return uuid.Nil, common.GRPCError(err)
	}
	doc, err := s.docs.Create(ctx, sessionID, kind, text)
	if err != nil {
		return uuid.Nil, common.GRPCError(err)
	}
	return doc.ID, nil
}

// EnsureProcessed drives extraction for a document. With a queue attached
// the work happens on the worker pool and the current state is returned
// immediately; without one the call is synchronous.
func (s *PipelineService) EnsureProcessed(ctx context.Context, rawDocumentID uuid.UUID) (StatusView, error) {
	if s.queue == nil {
		doc, err := s.processor.EnsureProcessed(ctx, rawDocumentID)
		if err != nil {
			return StatusView{}, common.GRPCError(err)
		}
		return StatusView{ID: doc.ID, Status: doc.Status, Error: doc.ProcessingError}, nil
	}

	if _, err := s.docs.GetByID(ctx, rawDocumentID); err != nil {
		return StatusView{}, common.GRPCError(err)
	}
	doc, err := s.processed.GetOrCreate(ctx, rawDocumentID)
	if err != nil {
		return StatusView{}, common.GRPCError(err)
	}
	if !doc.Status.Terminal() {
		_ = s.queue.Enqueue(ctx, async.Job{
			RawDocumentID: rawDocumentID,
			SubmittedAt:   time.Now().UTC(),
			TraceID:       common.RequestIDFromContext(ctx),
		})
	}
	return StatusView{ID: doc.ID, Status: doc.Status, Error: doc.ProcessingError}, nil
}

// RequestMatch matches a resume against a job and returns the match result
// id; callers poll GetResult for completion. force recomputes an existing
// completed result.
func (s *PipelineService) RequestMatch(ctx context.Context, resumeRawID, jobRawID uuid.UUID, force bool) (uuid.UUID, error) {
	result, err := s.matcher.RequestMatch(ctx, resumeRawID, jobRawID, force)
	if err != nil {
		return uuid.Nil, common.GRPCError(err)
	}
	return result.ID, nil
}

// GetStatus is the read-only poll for a processed document. Never mutates
// state and never re-triggers work.
func (s *PipelineService) GetStatus(ctx context.Context, processedDocumentID uuid.UUID) (StatusView, error) {
	doc, err := s.processed.GetByID(ctx, processedDocumentID)
	if err != nil {
		return StatusView{}, common.GRPCError(err)
	}
	return StatusView{ID: doc.ID, Status: doc.Status, Error: doc.ProcessingError}, nil
}

// GetResult is the read-only poll for a match result.
func (s *PipelineService) GetResult(ctx context.Context, matchResultID uuid.UUID) (ResultView, error) {
	m, err := s.matches.GetByID(ctx, matchResultID)
	if err != nil {
		return ResultView{}, common.GRPCError(err)
	}
	return ResultView{
		ID:             m.ID,
		Status:         m.Status,
		Score:          m.Score,
		ImprovedResume: m.ImprovedResume,
		Error:          m.ProcessingError,
	}, nil
}
