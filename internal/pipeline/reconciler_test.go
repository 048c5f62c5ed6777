package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/hireloop/resume-pipeline/constants"
)

func TestSweepReopensStaleClaims(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	rawID := e.submit(t, constants.KindResume, "text")

	doc, err := e.processed.GetOrCreate(ctx, rawID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if claimed, _ := e.processed.Claim(ctx, doc.ID); !claimed {
		t.Fatalf("claim failed")
	}

	// Simulate a worker that died mid-extraction an hour ago.
	if _, err := e.db.ExecContext(ctx,
		`UPDATE processed_documents SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Hour), doc.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	rec := NewReconciler(testLogger(), e.processed, e.matches, 10*time.Minute, time.Minute)
	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 re-opened row, got %d", n)
	}

	got, _ := e.processed.GetByID(ctx, doc.ID)
	if got.Status != constants.StatusPending {
		t.Fatalf("expected pending after sweep, got %s", got.Status)
	}
	if claimed, _ := e.processed.Claim(ctx, doc.ID); !claimed {
		t.Fatalf("re-opened row must be claimable")
	}
}

func TestSweepLeavesFreshAndTerminalRowsAlone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	// One fresh processing row and one completed row.
	fresh := e.submit(t, constants.KindResume, "fresh")
	freshDoc, _ := e.processed.GetOrCreate(ctx, fresh)
	if claimed, _ := e.processed.Claim(ctx, freshDoc.ID); !claimed {
		t.Fatalf("claim failed")
	}

	done := e.submit(t, constants.KindJob, "done")
	proc := NewProcessor(testLogger(), e.docs, e.processed, &stubExtractor{}, fastPolicy())
	if _, err := proc.EnsureProcessed(ctx, done); err != nil {
		t.Fatalf("EnsureProcessed: %v", err)
	}

	rec := NewReconciler(testLogger(), e.processed, e.matches, 10*time.Minute, time.Minute)
	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no re-opened rows, got %d", n)
	}
}

func TestSweepReopensStaleMatches(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	resumeDoc, _ := e.processed.GetByRawDocumentID(ctx, resumeRaw)
	jobDoc, _ := e.processed.GetByRawDocumentID(ctx, jobRaw)
	row, err := e.matches.GetOrCreate(ctx, resumeDoc.ID, jobDoc.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if claimed, _ := e.matches.Claim(ctx, row.ID); !claimed {
		t.Fatalf("claim failed")
	}
	if _, err := e.db.ExecContext(ctx,
		`UPDATE match_results SET updated_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Hour), row.ID); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	rec := NewReconciler(testLogger(), e.processed, e.matches, 10*time.Minute, time.Minute)
	n, err := rec.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 re-opened match, got %d", n)
	}

	got, _ := e.matches.GetByID(ctx, row.ID)
	if got.Status != constants.StatusPending {
		t.Fatalf("expected pending after sweep, got %s", got.Status)
	}
}
