package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/entity"
)

type SessionRepository interface {
	Create(ctx context.Context) (*entity.Session, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error)
	// Delete removes the session and cascades to its raw and processed
	// documents; dependent match results are removed with them.
	Delete(ctx context.Context, id uuid.UUID) error
}

type sessionRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSessionRepository(db *sql.DB, log *slog.Logger) SessionRepository {
	return &sessionRepo{db: db, log: log}
}

func (r *sessionRepo) Create(ctx context.Context) (*entity.Session, error) {
	s := &entity.Session{ID: uuid.New(), CreatedAt: time.Now().UTC()}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, created_at) VALUES ($1, $2)`,
		s.ID, s.CreatedAt)
	if err != nil {
		r.log.Error("session create failed", "error", err)
		return nil, err
	}
	r.log.Info("session created", "session_id", s.ID)
	return s, nil
}

func (r *sessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Session, error) {
	var s entity.Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM sessions WHERE id = $1`, id).
		Scan(&s.ID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.WrapError(common.ErrNotFound, "session "+id.String())
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		r.log.Error("session delete failed", "session_id", id, "error", err)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapError(common.ErrNotFound, "session "+id.String())
	}
	r.log.Info("session deleted", "session_id", id)
	return nil
}
