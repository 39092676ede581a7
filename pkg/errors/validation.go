package errors

import (
	"strings"
	"unicode"
)

// maxSymbolLength bounds function names accepted from profiles.
const maxSymbolLength = 4096

// ValidateFunctionName validates a function symbol name from a profile.
//
// The rules are intentionally loose since mangled names may contain almost
// anything:
//   - No empty names
//   - No whitespace or control characters
//   - Maximum length of 4096 bytes
//
// Cluster files are line oriented and use '!' as a directive prefix, so a
// name may not start with '!'.
func ValidateFunctionName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidProfile, "function name cannot be empty")
	}

	if len(name) > maxSymbolLength {
		return New(ErrCodeInvalidProfile, "function name too long (max %d bytes)", maxSymbolLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidProfile, "function name %q contains whitespace or control characters", name)
		}
	}

	if strings.HasPrefix(name, "!") {
		return New(ErrCodeInvalidProfile, "function name %q cannot start with '!'", name)
	}

	return nil
}

// ValidateURI checks that a backend connection string is non-empty and uses
// one of the given schemes (for example "redis://" or "mongodb://").
func ValidateURI(raw string, schemes ...string) error {
	if raw == "" {
		return New(ErrCodeInvalidConfig, "URI cannot be empty")
	}

	for _, s := range schemes {
		if strings.HasPrefix(raw, s+"://") {
			return nil
		}
	}

	return New(ErrCodeInvalidConfig, "URI %q must use one of the schemes: %s", raw, strings.Join(schemes, ", "))
}
