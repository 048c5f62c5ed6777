package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hireloop/resume-pipeline/constants"
)

// Session owns the raw documents submitted through it. Deleting a session
// cascades to its documents.
type Session struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// RawDocument is a resume or job-description text as submitted. Immutable
// once stored.
type RawDocument struct {
	ID        uuid.UUID              `json:"id"`
	SessionID uuid.UUID              `json:"session_id"`
	Kind      constants.DocumentKind `json:"kind"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
}

// ProcessedDocument holds extraction results and status for exactly one
// RawDocument.
type ProcessedDocument struct {
	ID              uuid.UUID                  `json:"id"`
	RawDocumentID   uuid.UUID                  `json:"raw_document_id"`
	Status          constants.ProcessingStatus `json:"status"`
	Keywords        KeywordSet                 `json:"extracted_keywords"`
	ProcessingError *string                    `json:"processing_error,omitempty"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}

// Validate checks the status/field invariants a well-formed row satisfies.
// The repository's guarded writes only construct legal states; this is the
// read-side check.
func (d *ProcessedDocument) Validate() error {
	if !d.Status.Valid() {
		return fmt.Errorf("processed document %s: unknown status %q", d.ID, d.Status)
	}
	switch d.Status {
	case constants.StatusCompleted:
		if d.Keywords.IsEmpty() {
			return fmt.Errorf("processed document %s: completed without keywords", d.ID)
		}
		if d.ProcessingError != nil {
			return fmt.Errorf("processed document %s: completed with error set", d.ID)
		}
	case constants.StatusFailed:
		if d.ProcessingError == nil || *d.ProcessingError == "" {
			return fmt.Errorf("processed document %s: failed without error", d.ID)
		}
	default:
		if !d.Keywords.IsEmpty() {
			return fmt.Errorf("processed document %s: keywords set while %s", d.ID, d.Status)
		}
	}
	return nil
}
