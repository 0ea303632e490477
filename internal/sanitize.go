package internal

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

type SanitizationError struct {
	Message string
	Details string
}

func (e *SanitizationError) Error() string {
	return e.Message + ": " + e.Details
}

// SanitizeCode checks a source string before it is queued. field names the
// input in error details.
func SanitizeCode(field, code string, maxCodeLength int) error {
	if strings.TrimSpace(code) == "" {
		return &SanitizationError{
			Message: "Code is empty",
			Details: field + " must not be blank",
		}
	}
	if maxCodeLength > 0 && len(code) > maxCodeLength {
		return &SanitizationError{
			Message: "Code length exceeds maximum limit",
			Details: fmt.Sprintf("%s is %d bytes, max length allowed is %d", field, len(code), maxCodeLength),
		}
	}
	if !utf8.ValidString(code) {
		return &SanitizationError{
			Message: "Code is not valid UTF-8",
			Details: field + " contains invalid byte sequences",
		}
	}
	if strings.ContainsRune(code, 0) {
		return &SanitizationError{
			Message: "Code contains NUL bytes",
			Details: field + " must be plain text",
		}
	}
	return nil
}
