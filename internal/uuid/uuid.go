// Package uuid wraps google/uuid for string identifiers.
package uuid

import "github.com/google/uuid"

// New returns a random (v4) UUID in its canonical string form.
func New() string {
	return uuid.NewString()
}
