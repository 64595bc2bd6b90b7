// Package registry holds the configured mapping of logical service ids to
// systemd unit names. The set is built once at startup and read-only for
// the life of the process.
package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound means the logical id is not configured. This is a client
// error, distinct from systemd not knowing the unit.
var ErrNotFound = errors.New("registry: unknown service")

// Entry is one configured service: an operator-facing id mapped to a
// concrete unit name, with a flag gating journal access.
type Entry struct {
	ID          string `json:"id" yaml:"id"`
	Unit        string `json:"unit" yaml:"unit"`
	Name        string `json:"name" yaml:"name"`
	LogsEnabled bool   `json:"logs_enabled" yaml:"logs"`
}

// Registry is an immutable, ordered set of entries with O(1) id lookup.
type Registry struct {
	entries []Entry
	byID    map[string]int
}

// New builds a registry from entries, preserving their order. Duplicate ids
// are rejected; configuration validation should have caught them already.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, len(entries)),
		byID:    make(map[string]int, len(entries)),
	}
	copy(r.entries, entries)
	for i, e := range r.entries {
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate service id %q", e.ID)
		}
		r.byID[e.ID] = i
	}
	return r, nil
}

// Lookup returns the entry for id or ErrNotFound.
func (r *Registry) Lookup(id string) (Entry, error) {
	i, ok := r.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return r.entries[i], nil
}

// All returns the entries in configuration order. The slice is a copy.
func (r *Registry) All() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of configured services.
func (r *Registry) Len() int {
	return len(r.entries)
}
