package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
)

// MatchResult scores a processed resume against a processed job and carries
// the improved-resume artifact. References to the processed documents are
// lookup-only; deleting either side invalidates the result.
type MatchResult struct {
	ID               uuid.UUID                  `json:"id"`
	ResumeDocumentID uuid.UUID                  `json:"resume_document_id"`
	JobDocumentID    uuid.UUID                  `json:"job_document_id"`
	Status           constants.ProcessingStatus `json:"status"`
	Score            *float64                   `json:"score,omitempty"`
	ImprovedResume   *string                    `json:"improved_resume,omitempty"`
	ProcessingError  *string                    `json:"processing_error,omitempty"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}
