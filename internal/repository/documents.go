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

type DocumentRepository interface {
	Create(ctx context.Context, sessionID uuid.UUID, kind constants.DocumentKind, content string) (*entity.RawDocument, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.RawDocument, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.RawDocument, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewDocumentRepository(db *sql.DB, log *slog.Logger) DocumentRepository {
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) Create(ctx context.Context, sessionID uuid.UUID, kind constants.DocumentKind, content string) (*entity.RawDocument, error) {
	d := &entity.RawDocument{
		ID:        uuid.New(),
		SessionID: sessionID,
		Kind:      kind,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO raw_documents (id, session_id, kind, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.SessionID, string(d.Kind), d.Content, d.CreatedAt)
	if err != nil {
		r.log.Error("raw document create failed", "session_id", sessionID, "kind", kind, "error", err)
		return nil, err
	}
	r.log.Info("raw document stored", "document_id", d.ID, "kind", kind, "bytes", len(content))
	return d, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.RawDocument, error) {
	var (
		d    entity.RawDocument
		kind string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, session_id, kind, content, created_at FROM raw_documents WHERE id = $1`, id).
		Scan(&d.ID, &d.SessionID, &kind, &d.Content, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "raw document "+id.String())
	}
	if err != nil {
		return nil, err
	}
	d.Kind = constants.DocumentKind(kind)
	return &d, nil
}

func (r *documentRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*entity.RawDocument, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, kind, content, created_at
		 FROM raw_documents WHERE session_id = $1 ORDER BY created_at`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.RawDocument
	for rows.Next() {
		var (
			d    entity.RawDocument
			kind string
		)
		if err := rows.Scan(&d.ID, &d.SessionID, &kind, &d.Content, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Kind = constants.DocumentKind(kind)
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM raw_documents WHERE id = $1`, id)
	if err != nil {
		r.log.Error("raw document delete failed", "document_id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "raw document "+id.String())
	}
	r.log.Info("raw document deleted", "document_id", id)
	return nil
}
