package ports

import "time"

// Archive is one completed backup in the remote store, identified by name
// with the creation instant reported by the store listing.
type Archive struct {
	Name string    // Full archive name
	Time time.Time // Creation instant
}

// Store abstracts the external archive store for testability.
// Production code uses the ExecTarsnapStore adapter; tests use MockStore.
type Store interface {
	// List returns archives whose names start with filter, sorted
	// newest-first by creation instant. Entries the store reports with an
	// unparseable timestamp are excluded from the result.
	List(filter string) ([]Archive, error)

	// Create stores a new archive with the given name covering path.
	Create(name, path string) error

	// Delete removes the named archive from the store.
	Delete(name string) error
}
