package common

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hireloop/resume-pipeline/constants"
)

// ValidateSubmission checks a raw document submission before anything is
// persisted. Oversized input is terminal and never retried, so it is
// rejected here rather than truncated downstream.
func ValidateSubmission(kind constants.DocumentKind, text string, maxBytes int) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: kind must be one of %v, got %q", ErrInvalidInput, constants.DocumentKinds, kind)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: document text is empty", ErrInvalidInput)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: document text is not valid UTF-8", ErrInvalidInput)
	}
	if maxBytes > 0 && len(text) > maxBytes {
		return fmt.Errorf("%w: document is %d bytes, limit is %d", ErrInputTooLarge, len(text), maxBytes)
	}
	return nil
}

// ValidateExtractionInput guards the extraction-client boundary with the
// same rules, so a direct caller cannot bypass submission validation.
func ValidateExtractionInput(text string, maxBytes int) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: extraction input is empty", ErrInvalidInput)
	}
	if maxBytes > 0 && len(text) > maxBytes {
		return fmt.Errorf("%w: extraction input is %d bytes, limit is %d", ErrInputTooLarge, len(text), maxBytes)
	}
	return nil
}
