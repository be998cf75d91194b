package token

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrTokenEmpty     = errors.New("token empty")
	ErrTokenMalformed = errors.New("token malformed")
)

const (
	// AgentPrefix is the prefix the collector puts on issued agent tokens.
	AgentPrefix = "agt_"
	// MaxLength bounds tokens accepted for storage.
	MaxLength = 4096

	visibleChars = 8
)

// Normalize trims surrounding whitespace and validates the result.
func Normalize(raw string) (string, error) {
	tok := strings.TrimSpace(raw)
	if err := Validate(tok); err != nil {
		return "", err
	}
	return tok, nil
}

// Validate checks that tok can be sent as a bearer credential: non-empty,
// bounded, and free of whitespace or control characters.
func Validate(tok string) error {
	if tok == "" {
		return ErrTokenEmpty
	}
	if len(tok) > MaxLength {
		return ErrTokenMalformed
	}
	for _, r := range tok {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return ErrTokenMalformed
		}
	}
	return nil
}

// IsAgentToken reports whether tok carries the collector's agent prefix.
func IsAgentToken(tok string) bool {
	return strings.HasPrefix(tok, AgentPrefix) && len(tok) > len(AgentPrefix)
}

// Redact returns a form of tok that is safe to log.
func Redact(tok string) string {
	if tok == "" {
		return ""
	}
	if len(tok) <= visibleChars {
		return "****"
	}
	return tok[:visibleChars] + "****"
}
