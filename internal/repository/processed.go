package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/entity"
)

// ProcessedDocumentRepository persists the per-document state machine. All
// transitions go through single-row conditional updates; Claim is the
// compare-and-swap that makes concurrent callers safe.
type ProcessedDocumentRepository interface {
	// GetOrCreate returns the 1:1 processed row for a raw document,
	// creating it in pending state on first request.
	GetOrCreate(ctx context.Context, rawDocumentID uuid.UUID) (*entity.ProcessedDocument, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ProcessedDocument, error)
	GetByRawDocumentID(ctx context.Context, rawDocumentID uuid.UUID) (*entity.ProcessedDocument, error)
	// Claim atomically moves pending|failed -> processing. Returns false
	// when another caller holds the claim or the row is already completed.
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	FinishSuccess(ctx context.Context, id uuid.UUID, keywords entity.KeywordSet) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	// RequeueStale re-opens processing rows untouched since olderThan back
	// to pending (crash/timeout recovery).
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
	ListPendingRawIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	CountByStatus(ctx context.Context) (map[constants.ProcessingStatus]int64, error)
}

type processedRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewProcessedDocumentRepository(db *sql.DB, log *slog.Logger) ProcessedDocumentRepository {
	return &processedRepo{db: db, log: log}
}

const processedColumns = `id, raw_document_id, status, extracted_keywords, processing_error, updated_at`

func (r *processedRepo) GetOrCreate(ctx context.Context, rawDocumentID uuid.UUID) (*entity.ProcessedDocument, error) {
	sentinel, err := entity.EmptyKeywordSet().JSON()
	if err != nil {
		return nil, err
	}
	// Idempotent create: the unique raw_document_id constraint makes the
	// second concurrent insert a no-op.
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO processed_documents (id, raw_document_id, status, extracted_keywords, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (raw_document_id) DO NOTHING`,
		uuid.New(), rawDocumentID, string(constants.StatusPending), sentinel, time.Now().UTC())
	if err != nil {
		r.log.Error("processed document create failed", "raw_document_id", rawDocumentID, "error", err)
		return nil, err
	}
	return r.GetByRawDocumentID(ctx, rawDocumentID)
}

func (r *processedRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ProcessedDocument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+processedColumns+` FROM processed_documents WHERE id = $1`, id)
	return scanProcessed(row, "processed document "+id.String())
}

func (r *processedRepo) GetByRawDocumentID(ctx context.Context, rawDocumentID uuid.UUID) (*entity.ProcessedDocument, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+processedColumns+` FROM processed_documents WHERE raw_document_id = $1`, rawDocumentID)
	return scanProcessed(row, "processed document for raw "+rawDocumentID.String())
}

func (r *processedRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE processed_documents
		 SET status = $1, processing_error = NULL, updated_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		string(constants.StatusProcessing), time.Now().UTC(),
		id, string(constants.StatusPending), string(constants.StatusFailed))
	if err != nil {
		r.log.Error("processed document claim failed", "id", id, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	claimed := n == 1
	r.log.Debug("processed document claim", "id", id, "claimed", claimed)
	return claimed, nil
}

func (r *processedRepo) FinishSuccess(ctx context.Context, id uuid.UUID, keywords entity.KeywordSet) error {
	if keywords.IsEmpty() {
		return common.WrapError(common.ErrInvalidInput, "completed document requires keywords")
	}
	payload, err := keywords.JSON()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE processed_documents
		 SET status = $1, extracted_keywords = $2, processing_error = NULL, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		string(constants.StatusCompleted), payload, time.Now().UTC(),
		id, string(constants.StatusProcessing))
	if err != nil {
		r.log.Error("processed document finish(completed) failed", "id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Claim was lost, e.g. the reconciler re-opened a stale row.
		return common.WrapError(common.ErrConflict, "processed document "+id.String())
	}
	r.log.Info("processed document completed", "id", id, "keywords", len(keywords.Keywords))
	return nil
}

func (r *processedRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	if message == "" {
		message = "extraction failed"
	}
	sentinel, err := entity.EmptyKeywordSet().JSON()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE processed_documents
		 SET status = $1, extracted_keywords = $2, processing_error = $3, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		string(constants.StatusFailed), sentinel, message, time.Now().UTC(),
		id, string(constants.StatusProcessing))
	if err != nil {
		r.log.Error("processed document finish(failed) failed", "id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrConflict, "processed document "+id.String())
	}
	r.log.Warn("processed document failed", "id", id, "error", message)
	return nil
}

func (r *processedRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE processed_documents
		 SET status = $1, updated_at = $2
		 WHERE status = $3 AND updated_at < $4`,
		string(constants.StatusPending), time.Now().UTC(),
		string(constants.StatusProcessing), olderThan.UTC())
	if err != nil {
		r.log.Error("processed document requeue failed", "error", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Warn("requeued stale processed documents", "count", n, "older_than", olderThan)
	}
	return n, nil
}

func (r *processedRepo) ListPendingRawIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT raw_document_id FROM processed_documents
		 WHERE status = $1 ORDER BY updated_at LIMIT $2`,
		string(constants.StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *processedRepo) CountByStatus(ctx context.Context) (map[constants.ProcessingStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM processed_documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[constants.ProcessingStatus]int64)
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[constants.ProcessingStatus(status)] = count
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProcessed(row rowScanner, label string) (*entity.ProcessedDocument, error) {
	var (
		d        entity.ProcessedDocument
		status   string
		keywords []byte
		errMsg   sql.NullString
	)
	err := row.Scan(&d.ID, &d.RawDocumentID, &status, &keywords, &errMsg, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	d.Status = constants.ProcessingStatus(status)
	if d.Keywords, err = entity.ParseKeywordSet(keywords); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		d.ProcessingError = &errMsg.String
	}
	return &d, nil
}
