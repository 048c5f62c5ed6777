package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/llm"
)

// completeBoth pushes both documents through extraction so matching
// preconditions hold.
func completeBoth(t *testing.T, e *env) (resumeRaw, jobRaw uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	resumeRaw = e.submit(t, constants.KindResume, "Senior backend engineer, 5 years Go")
	jobRaw = e.submit(t, constants.KindJob, "Looking for Go backend engineer")

	proc := NewProcessor(testLogger(), e.docs, e.processed, &stubExtractor{}, fastPolicy())
	for _, id := range []uuid.UUID{resumeRaw, jobRaw} {
		doc, err := proc.EnsureProcessed(ctx, id)
		if err != nil {
			t.Fatalf("EnsureProcessed: %v", err)
		}
		if doc.Status != constants.StatusCompleted {
			t.Fatalf("expected completed, got %s", doc.Status)
		}
	}
	return resumeRaw, jobRaw
}

func TestRequestMatchHappyPath(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	improver := &stubImprover{result: llm.ImproveResult{Score: 0.73, ImprovedResume: "Stronger resume"}}
	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, improver, fastPolicy())

	result, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if err != nil {
		t.Fatalf("RequestMatch: %v", err)
	}
	if result.Status != constants.StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.Score == nil || *result.Score < 0 || *result.Score > 1 {
		t.Fatalf("score must be in [0,1], got %v", result.Score)
	}
	if result.ImprovedResume == nil || *result.ImprovedResume == "" {
		t.Fatalf("expected improved resume text")
	}
}

func TestRequestMatchNotReadyCreatesNoRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw := e.submit(t, constants.KindResume, "resume text")
	jobRaw := e.submit(t, constants.KindJob, "job text")

	// Neither document has been processed.
	improver := &stubImprover{}
	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, improver, fastPolicy())

	_, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if !errors.Is(err, common.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if improver.calls.Load() != 0 {
		t.Fatalf("improver must not run when documents are not ready")
	}
	pending, err := e.matches.ListPendingIDs(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingIDs: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("a rejected match request must not create a row")
	}
}

func TestRequestMatchRejectsWrongKinds(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, &stubImprover{}, fastPolicy())

	// Swapped arguments: job where a resume is expected.
	_, err := matcher.RequestMatch(ctx, jobRaw, resumeRaw, false)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestRequestMatchIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	improver := &stubImprover{}
	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, improver, fastPolicy())

	first, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if err != nil {
		t.Fatalf("first RequestMatch: %v", err)
	}
	second, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if err != nil {
		t.Fatalf("second RequestMatch: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("the same pair must map to the same result row")
	}
	if improver.calls.Load() != 1 {
		t.Fatalf("a completed match must be returned without recompute, got %d calls", improver.calls.Load())
	}
}

func TestRequestMatchForceRecomputes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	improver := &stubImprover{}
	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, improver, fastPolicy())

	if _, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false); err != nil {
		t.Fatalf("first RequestMatch: %v", err)
	}
	result, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, true)
	if err != nil {
		t.Fatalf("forced RequestMatch: %v", err)
	}
	if result.Status != constants.StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if improver.calls.Load() != 2 {
		t.Fatalf("force must recompute, got %d calls", improver.calls.Load())
	}
}

func TestRequestMatchRecordsFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	transient := fmt.Errorf("%w: 503", common.ErrServiceUnavailable)
	improver := &stubImprover{script: []error{transient, transient, transient}}
	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, improver, fastPolicy())

	result, err := matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if err != nil {
		t.Fatalf("RequestMatch must persist the failure, not return it: %v", err)
	}
	if result.Status != constants.StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	if result.ProcessingError == nil {
		t.Fatalf("failed match must record an error")
	}

	// The failed row is re-claimable: the next request retries.
	improver.script = nil
	result, err = matcher.RequestMatch(ctx, resumeRaw, jobRaw, false)
	if err != nil {
		t.Fatalf("retry RequestMatch: %v", err)
	}
	if result.Status != constants.StatusCompleted {
		t.Fatalf("expected completed after retry, got %s", result.Status)
	}
}

func TestRunByIDResumesPendingMatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	resumeRaw, jobRaw := completeBoth(t, e)

	resumeDoc, err := e.processed.GetByRawDocumentID(ctx, resumeRaw)
	if err != nil {
		t.Fatalf("resume doc: %v", err)
	}
	jobDoc, err := e.processed.GetByRawDocumentID(ctx, jobRaw)
	if err != nil {
		t.Fatalf("job doc: %v", err)
	}
	row, err := e.matches.GetOrCreate(ctx, resumeDoc.ID, jobDoc.ID)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	matcher := NewMatcher(testLogger(), e.docs, e.processed, e.matches, &stubImprover{}, fastPolicy())
	result, err := matcher.RunByID(ctx, row.ID)
	if err != nil {
		t.Fatalf("RunByID: %v", err)
	}
	if result.Status != constants.StatusCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
}
