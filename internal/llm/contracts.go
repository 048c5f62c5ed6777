package llm

import (
	"context"

	"github.com/hireloop/resume-pipeline/constants"
	"github.com/hireloop/resume-pipeline/internal/entity"
)

// ExtractRequest carries one document through keyword extraction.
type ExtractRequest struct {
	Kind constants.DocumentKind
	Text string
}

// ImproveRequest carries a completed resume/job pair into the
// match-and-improve call.
type ImproveRequest struct {
	ResumeText     string
	JobText        string
	ResumeKeywords entity.KeywordSet
	JobKeywords    entity.KeywordSet
}

// ImproveResult is the normalized shape we want back: a match score in
// [0,1] and the rewritten resume.
type ImproveResult struct {
	Score          float64 `json:"score"`
	ImprovedResume string  `json:"improved_resume"`
}

// KeywordExtractor is the capability interface the orchestrator depends on.
// Implementations must be safe for concurrent use across independent texts.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, req ExtractRequest) (entity.KeywordSet, []byte /*rawJSON*/, error)
}

// ResumeImprover produces the match score and improved-resume payload.
type ResumeImprover interface {
	Improve(ctx context.Context, req ImproveRequest) (ImproveResult, []byte /*rawJSON*/, error)
}
