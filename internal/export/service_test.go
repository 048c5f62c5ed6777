package export

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/entity"
	"github.com/hireloop/resume-pipeline/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSessionWithMatch(t *testing.T) (repository.MatchRepository, uuid.UUID) {
	t.Helper()
	db, err := repository.OpenSQLite(repository.InMemoryDSN, testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	sessions := repository.NewSessionRepository(db, testLogger())
	docs := repository.NewDocumentRepository(db, testLogger())
	processed := repository.NewProcessedDocumentRepository(db, testLogger())
	matches := repository.NewMatchRepository(db, testLogger())

	sess, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	complete := func(kind constants.DocumentKind, content string) uuid.UUID {
		raw, err := docs.Create(ctx, sess.ID, kind, content)
		if err != nil {
			t.Fatalf("create document: %v", err)
		}
		doc, err := processed.GetOrCreate(ctx, raw.ID)
		if err != nil {
			t.Fatalf("GetOrCreate: %v", err)
		}
		if claimed, _ := processed.Claim(ctx, doc.ID); !claimed {
			t.Fatalf("claim failed")
		}
		set := entity.KeywordSet{Keywords: []entity.Keyword{{Term: "Go"}}}
		if err := processed.FinishSuccess(ctx, doc.ID, set); err != nil {
			t.Fatalf("FinishSuccess: %v", err)
		}
		return doc.ID
	}

	resumeDoc := complete(constants.KindResume, "resume")
	jobDoc := complete(constants.KindJob, "job")

	m, err := matches.GetOrCreate(ctx, resumeDoc, jobDoc)
	if err != nil {
		t.Fatalf("match GetOrCreate: %v", err)
	}
	if claimed, _ := matches.Claim(ctx, m.ID); !claimed {
		t.Fatalf("match claim failed")
	}
	if err := matches.FinishSuccess(ctx, m.ID, 0.91, "Improved resume body"); err != nil {
		t.Fatalf("match FinishSuccess: %v", err)
	}
	return matches, sess.ID
}

func TestExportMatchesXLSX(t *testing.T) {
	matches, sessionID := seedSessionWithMatch(t)
	svc := NewService(matches, testLogger())

	out, err := svc.ExportMatchesXLSX(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("ExportMatchesXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Matches")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one match row, got %d rows", len(rows))
	}
	if rows[0][0] != "Match ID" {
		t.Fatalf("unexpected header row: %v", rows[0])
	}
	if rows[1][3] != string(constants.StatusCompleted) {
		t.Fatalf("expected completed status cell, got %q", rows[1][3])
	}
	if rows[1][6] != "Improved resume body" {
		t.Fatalf("unexpected improved resume cell: %q", rows[1][6])
	}
}

func TestExportMatchesXLSXEmptySession(t *testing.T) {
	matches, _ := seedSessionWithMatch(t)
	svc := NewService(matches, testLogger())

	out, err := svc.ExportMatchesXLSX(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ExportMatchesXLSX: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Matches")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected only the header row, got %d", len(rows))
	}
}
