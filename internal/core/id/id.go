// Package id generates item identifiers.
// UUIDv7 is time-ordered, so listing by id roughly follows creation time and
// keeps good B-tree locality in the relational engines.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used for every stored item.
type ID = uuid.UUID

// New generates a new UUIDv7 (RFC 9562).
func New() ID {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v7
}

// NewString generates a new UUIDv7 in string form.
func NewString() string {
	return New().String()
}

// Parse converts string to ID with validation.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// IsValid reports whether s is a well-formed item id.
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
