package session

import (
	"strings"

	"github.com/google/uuid"
)

// NewID mints an opaque session id for a browser that has none.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether raw looks like an id minted by NewID.
func ValidID(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
