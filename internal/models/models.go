// package models defines the data model for the style-transfer proxy
package models

import "time"

// Model defines the base interface for persisted entities.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Stamp returns the current time truncated to milliseconds, matching the precision both stores keep.
func Stamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
