// Package id formats and parses the record identifiers shown to users.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ShortLen is the number of hex characters in a short ID.
const ShortLen = 8

// New returns a fresh random record ID.
func New() uuid.UUID { return uuid.New() }

// Short returns the first ShortLen hex characters of id, as listed by the
// CLI: "3f9c2a1b".
func Short(id uuid.UUID) string {
	return id.String()[:ShortLen]
}

// Parse accepts a full UUID in any form uuid.Parse understands.
func Parse(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return u, nil
}

// IsPrefix reports whether s looks like a short ID or longer prefix of a
// UUID's canonical form.
func IsPrefix(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 4 || len(s) > 36 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		case r == '-' && (i == 8 || i == 13 || i == 18 || i == 23):
		default:
			return false
		}
	}
	return true
}

// MatchPrefix reports whether id's canonical form starts with prefix.
func MatchPrefix(id uuid.UUID, prefix string) bool {
	return strings.HasPrefix(id.String(), strings.ToLower(strings.TrimSpace(prefix)))
}
