package mocks

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mcdonaldj/tarkeep/internal/ports"
)

// MockStore implements ports.Store for testing.
type MockStore struct {
	// Archives is the current store contents.
	Archives []ports.Archive
	// CreatedPaths records Create calls: archive name -> backed-up path.
	CreatedPaths map[string]string
	// Deleted records archive names passed to Delete, in order.
	Deleted []string
	// Now is the creation instant assigned by Create.
	Now time.Time
	// Errors allows simulating errors for specific operations.
	Errors struct {
		List   error
		Create error
		Delete error
	}
	// DeleteErrors simulates per-archive deletion failures.
	DeleteErrors map[string]error
}

// NewMockStore creates a new mock archive store.
func NewMockStore() *MockStore {
	return &MockStore{
		CreatedPaths: make(map[string]string),
		DeleteErrors: make(map[string]error),
		Now:          time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC),
	}
}

// Add inserts an archive directly into the store contents.
func (m *MockStore) Add(name string, t time.Time) {
	m.Archives = append(m.Archives, ports.Archive{Name: name, Time: t})
}

// List returns archives whose names start with filter, newest first.
func (m *MockStore) List(filter string) ([]ports.Archive, error) {
	if m.Errors.List != nil {
		return nil, m.Errors.List
	}

	var matched []ports.Archive
	for _, a := range m.Archives {
		if strings.HasPrefix(a.Name, filter) {
			matched = append(matched, a)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Time.After(matched[j].Time)
	})
	return matched, nil
}

// Create stores a new archive named name with the mock's Now instant.
func (m *MockStore) Create(name, path string) error {
	if m.Errors.Create != nil {
		return m.Errors.Create
	}
	m.Archives = append(m.Archives, ports.Archive{Name: name, Time: m.Now})
	m.CreatedPaths[name] = path
	return nil
}

// Delete removes the named archive from the store contents.
func (m *MockStore) Delete(name string) error {
	if m.Errors.Delete != nil {
		return m.Errors.Delete
	}
	if err := m.DeleteErrors[name]; err != nil {
		return err
	}

	for i, a := range m.Archives {
		if a.Name == name {
			m.Archives = append(m.Archives[:i], m.Archives[i+1:]...)
			m.Deleted = append(m.Deleted, name)
			return nil
		}
	}
	return fmt.Errorf("archive not found: %s", name)
}

// Compile-time check that MockStore implements ports.Store.
var _ ports.Store = (*MockStore)(nil)
