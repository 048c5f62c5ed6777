package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is the smallest useful unit: one raw document to push through
// extraction.
type Job struct {
	RawDocumentID uuid.UUID
	SubmittedAt   time.Time
	TraceID       string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
