package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenSQLite(InMemoryDSN, testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// seedDocument creates a session plus one raw document and returns the raw id.
func seedDocument(t *testing.T, db *sql.DB, kind constants.DocumentKind, content string) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	sessions := NewSessionRepository(db, testLogger())
	docs := NewDocumentRepository(db, testLogger())

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	doc, err := docs.Create(ctx, sess.ID, kind, content)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc.ID
}

func keywords(terms ...string) entity.KeywordSet {
	set := entity.EmptyKeywordSet()
	for _, term := range terms {
		set.Keywords = append(set.Keywords, entity.Keyword{Term: term})
	}
	return set
}

func TestSessionDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sessions := NewSessionRepository(db, testLogger())
	docs := NewDocumentRepository(db, testLogger())

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	doc, err := docs.Create(ctx, sess.ID, constants.KindResume, "Go engineer")
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	if err := sessions.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := docs.GetByID(ctx, doc.ID); err == nil {
		t.Fatalf("expected document to be deleted with its session")
	}
}

func TestDocumentListBySession(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	sessions := NewSessionRepository(db, testLogger())
	docs := NewDocumentRepository(db, testLogger())

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := docs.Create(ctx, sess.ID, constants.KindResume, "resume text"); err != nil {
		t.Fatalf("create resume: %v", err)
	}
	if _, err := docs.Create(ctx, sess.ID, constants.KindJob, "job text"); err != nil {
		t.Fatalf("create job: %v", err)
	}

	list, err := docs.ListBySession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(list))
	}
}
