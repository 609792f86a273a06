package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/orderflow/hookq/pkg/core"
)

// Limits
const (
	// MaxPayloadSize is the maximum serialized payload size in bytes (64KB).
	// Oversized payloads are rejected at enqueue to protect storage and memory.
	MaxPayloadSize = 64 << 10

	// MaxIntentNameLength is the maximum length for intent names
	MaxIntentNameLength = 255

	// MaxTenantIDLength is the maximum length for tenant identifiers
	MaxTenantIDLength = 255

	// MaxRetries is the hard limit for retry attempts
	MaxRetries = 100

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096
)

// validIntentName matches alphanumeric, hyphens, underscores, dots, and slashes
var validIntentName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\./]*$`)

// ValidateIntentName validates an intent name
func ValidateIntentName(name string) error {
	if name == "" {
		return core.ErrInvalidIntent
	}
	if len(name) > MaxIntentNameLength {
		return core.ErrInvalidIntent
	}
	if !validIntentName.MatchString(name) {
		return core.ErrInvalidIntent
	}
	return nil
}

// ValidateTenantID validates a tenant identifier
func ValidateTenantID(id string) error {
	if id == "" || len(id) > MaxTenantIDLength {
		return core.ErrEmptyTenant
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Strip null bytes and control characters (except newlines/tabs)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampRetries ensures retry count is within limits
func ClampRetries(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxRetries {
		return MaxRetries
	}
	return n
}
