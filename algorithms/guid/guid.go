// Package guid generates random identifiers for use as correlation IDs,
// temp-file suffixes and the like.
package guid

import "github.com/google/uuid"

// MustCreate returns a new random UUID string, panicking if the platform
// entropy source fails (it never does in practice on supported OSes).
func MustCreate() string {
	return uuid.New().String()
}
