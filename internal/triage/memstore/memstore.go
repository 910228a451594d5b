// Package memstore provides an in-memory implementation of triage.Store.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/linnemanlabs/radtriage/internal/triage"
)

// Store holds triage results in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	results map[string]*triage.Result // image name -> result
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		results: make(map[string]*triage.Result),
	}
}

// Get retrieves a triage result by image name. Returns a copy.
func (s *Store) Get(_ context.Context, imageName string) (*triage.Result, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[imageName]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

// Put stores a copy of the triage result, replacing any existing entry.
func (s *Store) Put(_ context.Context, r *triage.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.ImageName] = r.Clone()
	return nil
}

// Names returns all stored image names in lexical order.
func (s *Store) Names(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.results))
	for name := range s.results {
		out = append(out, name)
	}
	slices.Sort(out)
	return out, nil
}

// List returns copies of all results, highest severity first and unrated last.
// Ties are broken by image name so the order is deterministic.
func (s *Store) List(_ context.Context) ([]*triage.Result, error) {
	s.mu.RLock()
	out := make([]*triage.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *triage.Result) int {
		switch {
		case a.SeverityRating == nil && b.SeverityRating == nil:
			return cmp.Compare(a.ImageName, b.ImageName)
		case a.SeverityRating == nil:
			return 1
		case b.SeverityRating == nil:
			return -1
		}
		if c := cmp.Compare(*b.SeverityRating, *a.SeverityRating); c != 0 {
			return c
		}
		return cmp.Compare(a.ImageName, b.ImageName)
	})
	return out, nil
}
