package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// InMemoryDSN opens a private in-memory SQLite database, used by the
// -inmem batch mode and the test suite.
const InMemoryDSN = "file::memory:?_pragma=foreign_keys(1)"

// Open creates a pgx pool and wraps it as *sql.DB for the repositories.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*sql.DB, *pgxpool.Pool, error) {
	logger.Info("connecting to database", "dsn", cfg.DSN)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "resume-pipeline"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}

	db := stdlib.OpenDBFromPool(pool)

	logger.Info("successfully connected to database")
	return db, pool, nil
}

// OpenSQLite opens an embedded store and applies the schema. A single
// connection is pinned for in-memory databases so they survive pool churn.
func OpenSQLite(dsn string, logger *slog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = InMemoryDSN
	}
	logger.Info("opening sqlite database", "dsn", dsn)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connections gracefully
func Close(db *sql.DB, pool *pgxpool.Pool, logger *slog.Logger) {
	logger.Info("closing database connections")
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db handle", "error", err)
		}
	}
	if pool != nil {
		pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// sqliteSchema mirrors db/migrations/0001_init.sql in SQLite dialect.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS raw_documents (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	kind       TEXT NOT NULL CHECK (kind IN ('resume', 'job')),
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_raw_documents_session ON raw_documents (session_id);

CREATE TABLE IF NOT EXISTS processed_documents (
	id                 TEXT PRIMARY KEY,
	raw_document_id    TEXT NOT NULL UNIQUE REFERENCES raw_documents(id) ON DELETE CASCADE,
	status             TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	extracted_keywords TEXT NOT NULL,
	processing_error   TEXT,
	updated_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processed_documents_status ON processed_documents (status, updated_at);

CREATE TABLE IF NOT EXISTS match_results (
	id                 TEXT PRIMARY KEY,
	resume_document_id TEXT NOT NULL REFERENCES processed_documents(id) ON DELETE CASCADE,
	job_document_id    TEXT NOT NULL REFERENCES processed_documents(id) ON DELETE CASCADE,
	status             TEXT NOT NULL CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
	score              REAL,
	improved_resume    TEXT,
	processing_error   TEXT,
	updated_at         TIMESTAMP NOT NULL,
	UNIQUE (resume_document_id, job_document_id)
);
CREATE INDEX IF NOT EXISTS idx_match_results_status ON match_results (status, updated_at);
`
