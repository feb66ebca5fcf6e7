package setstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// SetStore answers membership queries against named sets of strings:
// URL shortener domains, suspicious TLDs, hate-speech lexicon terms, and
// similar curated lists.
type SetStore interface {
	InSet(ctx context.Context, name, val string) (bool, error)
}

type MemSetStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]bool
}

func NewMemSetStore() *MemSetStore {
	return &MemSetStore{
		sets: make(map[string]map[string]bool),
	}
}

func (s *MemSetStore) InSet(ctx context.Context, name, val string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[name]
	if !ok {
		// an unknown set reads as empty
		return false, nil
	}
	return set[val], nil
}

// AddToSet adds values to a named set, creating it if needed.
func (s *MemSetStore) AddToSet(ctx context.Context, name string, vals []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.sets[name]
	if !ok {
		set = make(map[string]bool, len(vals))
		s.sets[name] = set
	}
	for _, v := range vals {
		set[v] = true
	}
	return nil
}

// LoadFromFileJSON reads a {"set-name": ["member", ...]} document and
// replaces each named set wholesale. Sets not mentioned in the file are left
// alone, so it is safe to call again for hot reload.
func (s *MemSetStore) LoadFromFileJSON(p string) error {

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	raw, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	var lists map[string][]string
	if err := json.Unmarshal(raw, &lists); err != nil {
		return fmt.Errorf("failed to parse set file %s: %w", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, l := range lists {
		m := make(map[string]bool, len(l))
		for _, val := range l {
			m[val] = true
		}
		s.sets[name] = m
	}
	return nil
}
