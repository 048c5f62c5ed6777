package pipeline

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/common"
	"github.com/hireloop/resume-pipeline/internal/entity"
	"github.com/hireloop/resume-pipeline/internal/llm"
	"github.com/hireloop/resume-pipeline/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastPolicy keeps retry tests quick.
func fastPolicy() common.PipelineConfig {
	return common.PipelineConfig{
		MaxAttempts:      3,
		MalformedRetries: 1,
		BackoffBase:      time.Millisecond,
		ExtractTimeout:   5 * time.Second,
		MatchTimeout:     5 * time.Second,
	}
}

type env struct {
	db        *sql.DB
	sessions  repository.SessionRepository
	docs      repository.DocumentRepository
	processed repository.ProcessedDocumentRepository
	matches   repository.MatchRepository
	sessionID uuid.UUID
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := repository.OpenSQLite(repository.InMemoryDSN, testLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		db:        db,
		sessions:  repository.NewSessionRepository(db, testLogger()),
		docs:      repository.NewDocumentRepository(db, testLogger()),
		processed: repository.NewProcessedDocumentRepository(db, testLogger()),
		matches:   repository.NewMatchRepository(db, testLogger()),
	}
	sess, err := e.sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	e.sessionID = sess.ID
	return e
}

func (e *env) submit(t *testing.T, kind constants.DocumentKind, content string) uuid.UUID {
	t.Helper()
	doc, err := e.docs.Create(context.Background(), e.sessionID, kind, content)
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc.ID
}

// stubExtractor counts invocations and plays back one scripted error per
// call; once the script is exhausted it succeeds with the configured set.
type stubExtractor struct {
	calls   atomic.Int32
	latency time.Duration
	script  []error
	set     entity.KeywordSet
}

func (s *stubExtractor) ExtractKeywords(ctx context.Context, _ llm.ExtractRequest) (entity.KeywordSet, []byte, error) {
	n := int(s.calls.Add(1))
	if s.latency > 0 {
		select {
		case <-ctx.Done():
			return entity.KeywordSet{}, nil, ctx.Err()
		case <-time.After(s.latency):
		}
	}
	if n <= len(s.script) && s.script[n-1] != nil {
		return entity.KeywordSet{}, nil, s.script[n-1]
	}
	set := s.set
	if set.IsEmpty() {
		set = entity.KeywordSet{Keywords: []entity.Keyword{{Term: "Go"}, {Term: "backend"}}}
	}
	return set, nil, nil
}

type stubImprover struct {
	calls  atomic.Int32
	script []error
	result llm.ImproveResult
}

func (s *stubImprover) Improve(_ context.Context, _ llm.ImproveRequest) (llm.ImproveResult, []byte, error) {
	n := int(s.calls.Add(1))
	if n <= len(s.script) && s.script[n-1] != nil {
		return llm.ImproveResult{}, nil, s.script[n-1]
	}
	if s.result.ImprovedResume == "" {
		return llm.ImproveResult{Score: 0.8, ImprovedResume: "Improved resume"}, nil, nil
	}
	return s.result, nil, nil
}
