package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// NewPrefixed generates an identifier with a short type prefix, e.g.
// "evt_8f14e45f-…" for price reduction events.
func NewPrefixed(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
