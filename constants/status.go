package constants

// ProcessingStatus is the canonical status for processed documents and
// match results.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    ProcessingStatus = "pending"    // created, no attempt yet
	StatusProcessing ProcessingStatus = "processing" // claimed, extraction in flight
	StatusCompleted  ProcessingStatus = "completed"  // terminal success
	StatusFailed     ProcessingStatus = "failed"     // terminal per attempt; re-claimable
)

// Valid reports whether s is one of the four persisted statuses.
func (s ProcessingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends an attempt. A failed row may still be
// re-claimed by an explicit retry.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
