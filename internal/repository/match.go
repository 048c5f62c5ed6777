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

// MatchRepository persists match results with the same claim lifecycle as
// processed documents. The (resume, job) pair is unique; requesting the
// same pair twice observes the existing row.
type MatchRepository interface {
	GetOrCreate(ctx context.Context, resumeDocumentID, jobDocumentID uuid.UUID) (*entity.MatchResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.MatchResult, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	// Reopen forces a completed row back to pending for explicit
	// recomputation.
	Reopen(ctx context.Context, id uuid.UUID) error
	FinishSuccess(ctx context.Context, id uuid.UUID, score float64, improvedResume string) error
	FinishFailure(ctx context.Context, id uuid.UUID, message string) error
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
	ListPendingIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.MatchResult, error)
}

type matchRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewMatchRepository(db *sql.DB, log *slog.Logger) MatchRepository {
	return &matchRepo{db: db, log: log}
}

const matchColumns = `id, resume_document_id, job_document_id, status, score, improved_resume, processing_error, updated_at`

func (r *matchRepo) GetOrCreate(ctx context.Context, resumeDocumentID, jobDocumentID uuid.UUID) (*entity.MatchResult, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO match_results (id, resume_document_id, job_document_id, status, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (resume_document_id, job_document_id) DO NOTHING`,
		uuid.New(), resumeDocumentID, jobDocumentID,
		string(constants.StatusPending), time.Now().UTC())
	if err != nil {
		r.log.Error("match result create failed",
			"resume_document_id", resumeDocumentID, "job_document_id", jobDocumentID, "error", err)
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM match_results
		 WHERE resume_document_id = $1 AND job_document_id = $2`,
		resumeDocumentID, jobDocumentID)
	return scanMatch(row, "match result for pair")
}

func (r *matchRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.MatchResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM match_results WHERE id = $1`, id)
	return scanMatch(row, "match result "+id.String())
}

func (r *matchRepo) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results
		 SET status = $1, processing_error = NULL, updated_at = $2
		 WHERE id = $3 AND status IN ($4, $5)`,
		string(constants.StatusProcessing), time.Now().UTC(),
		id, string(constants.StatusPending), string(constants.StatusFailed))
	if err != nil {
		r.log.Error("match result claim failed", "id", id, "error", err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *matchRepo) Reopen(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results
		 SET status = $1, score = NULL, improved_resume = NULL, processing_error = NULL, updated_at = $2
		 WHERE id = $3 AND status = $4`,
		string(constants.StatusPending), time.Now().UTC(),
		id, string(constants.StatusCompleted))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrConflict, "match result "+id.String())
	}
	r.log.Info("match result reopened for recompute", "id", id)
	return nil
}

func (r *matchRepo) FinishSuccess(ctx context.Context, id uuid.UUID, score float64, improvedResume string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results
		 SET status = $1, score = $2, improved_resume = $3, processing_error = NULL, updated_at = $4
		 WHERE id = $5 AND status = $6`,
		string(constants.StatusCompleted), score, improvedResume, time.Now().UTC(),
		id, string(constants.StatusProcessing))
	if err != nil {
		r.log.Error("match result finish(completed) failed", "id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrConflict, "match result "+id.String())
	}
	r.log.Info("match result completed", "id", id, "score", score)
	return nil
}

func (r *matchRepo) FinishFailure(ctx context.Context, id uuid.UUID, message string) error {
	if message == "" {
		message = "matching failed"
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results
		 SET status = $1, score = NULL, improved_resume = NULL, processing_error = $2, updated_at = $3
		 WHERE id = $4 AND status = $5`,
		string(constants.StatusFailed), message, time.Now().UTC(),
		id, string(constants.StatusProcessing))
	if err != nil {
		r.log.Error("match result finish(failed) failed", "id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrConflict, "match result "+id.String())
	}
	r.log.Warn("match result failed", "id", id, "error", message)
	return nil
}

func (r *matchRepo) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE match_results
		 SET status = $1, updated_at = $2
		 WHERE status = $3 AND updated_at < $4`,
		string(constants.StatusPending), time.Now().UTC(),
		string(constants.StatusProcessing), olderThan.UTC())
	if err != nil {
		r.log.Error("match result requeue failed", "error", err)
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Warn("requeued stale match results", "count", n, "older_than", olderThan)
	}
	return n, nil
}

func (r *matchRepo) ListPendingIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM match_results WHERE status = $1 ORDER BY updated_at LIMIT $2`,
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

func (r *matchRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.MatchResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT m.id, m.resume_document_id, m.job_document_id, m.status,
		        m.score, m.improved_resume, m.processing_error, m.updated_at
		 FROM match_results m
		 JOIN processed_documents p ON m.resume_document_id = p.id
		 JOIN raw_documents d ON p.raw_document_id = d.id
		 WHERE d.session_id = $1
		 ORDER BY m.updated_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.MatchResult
	for rows.Next() {
		m, err := scanMatch(rows, "match result")
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMatch(row rowScanner, label string) (*entity.MatchResult, error) {
	var (
		m        entity.MatchResult
		status   string
		score    sql.NullFloat64
		improved sql.NullString
		errMsg   sql.NullString
	)
	err := row.Scan(&m.ID, &m.ResumeDocumentID, &m.JobDocumentID, &status,
		&score, &improved, &errMsg, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, label)
	}
	if err != nil {
		return nil, err
	}
	m.Status = constants.ProcessingStatus(status)
	if score.Valid {
		m.Score = &score.Float64
	}
	if improved.Valid {
		m.ImprovedResume = &improved.String
	}
	if errMsg.Valid {
		m.ProcessingError = &errMsg.String
	}
	return &m, nil
}
