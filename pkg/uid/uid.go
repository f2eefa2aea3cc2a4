// Package uid generates the identifiers used for sync runs and request
// correlation.
package uid

import "github.com/google/uuid"

// New returns a new random UUID string.
func New() string {
	return uuid.New().String()
}
