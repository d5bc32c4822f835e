// Package uuid generates and validates the UUIDv7 identifiers used as
// primary keys throughout Tally. UUIDv7 is time-ordered, which keeps
// index pages warm and makes IDs roughly sortable by creation time.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a new UUIDv7 string.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// crypto/rand failure; fall back to a random v4
		return googleuuid.NewString()
	}
	return id.String()
}

// Parse validates and canonicalizes a UUID string.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
