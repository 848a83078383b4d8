package store

import "github.com/oklog/ulid/v2"

// NewID returns a new lexicographically sortable record ID. IDs created
// later sort after earlier ones, which backends use for stable ordering.
func NewID() string {
	return ulid.Make().String()
}
