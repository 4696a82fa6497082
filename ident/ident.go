// Package ident generates record identifiers.
//
// IDs combine a monotonic time component with a random component (UUIDv7)
// so that insertion order roughly matches lexical order and collisions are
// not a practical concern even when many records are created in one batch.
package ident

import "github.com/google/uuid"

// New returns a fresh identifier.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		// v7 only fails if the random source does; fall back to v4.
		return uuid.NewString()
	}
	return id.String()
}
