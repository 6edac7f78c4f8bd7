package episode

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ValidationError rejects a request before any side effect takes place.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ValidateSource checks the request shape: raw text, a stored document
// reference, or both. Raw text is checked against maxChars when present.
func ValidateSource(text, documentRef string, maxChars int) error {
	if strings.TrimSpace(documentRef) == "" {
		if text == "" {
			return &ValidationError{Field: "text", Message: "either text or a document reference is required"}
		}
		return ValidateText(text, maxChars)
	}
	if strings.TrimSpace(text) != "" {
		return ValidateText(text, maxChars)
	}
	return nil
}

// ValidateText rejects blank text and text longer than maxChars characters.
// maxChars <= 0 disables the length check.
func ValidateText(text string, maxChars int) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Message: "must not be empty or whitespace"}
	}
	if maxChars > 0 {
		if n := utf8.RuneCountInString(text); n > maxChars {
			return &ValidationError{Field: "text", Message: fmt.Sprintf("length %d exceeds maximum of %d characters", n, maxChars)}
		}
	}
	return nil
}
