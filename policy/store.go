package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/inkhaven-social/warden/flagstore"
)

// Store publishes the current policy snapshot. Readers take a snapshot with
// Current and never block writers; writers serialize among themselves and
// swap in a fresh snapshot with a bumped version.
type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
}

// NewStore returns a store bootstrapped with every filter enabled at
// MODERATE sensitivity and empty term sets.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{Version: 1, filters: defaultFilters()})
	return s
}

func (s *Store) Current() *Snapshot {
	return s.cur.Load()
}

// Update applies a partial change to one filter and publishes the resulting
// snapshot. Returns the new snapshot.
func (s *Store) Update(t flagstore.FlagType, u Update, updatedBy string) (*Snapshot, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	f := old.For(t)
	if u.Sensitivity != nil {
		f.Sensitivity = *u.Sensitivity
	}
	if u.Enabled != nil {
		f.Enabled = *u.Enabled
	}
	if u.Whitelist != nil {
		f.Whitelist = lowerSet(u.Whitelist)
	} else {
		f.Whitelist = copySet(f.Whitelist)
	}
	if u.Blacklist != nil {
		f.Blacklist = lowerSet(u.Blacklist)
	} else {
		f.Blacklist = copySet(f.Blacklist)
	}
	f.Type = t
	f.UpdatedAt = time.Now().UTC()
	f.UpdatedBy = updatedBy

	next := &Snapshot{
		Version: old.Version + 1,
		filters: make(map[flagstore.FlagType]Filter, len(old.filters)+1),
	}
	for k, v := range old.filters {
		next.filters[k] = v
	}
	next.filters[t] = f

	s.cur.Store(next)
	return next, nil
}

type filterFile struct {
	Sensitivity Sensitivity `json:"sensitivity"`
	Enabled     *bool       `json:"enabled"`
	Whitelist   []string    `json:"whitelist"`
	Blacklist   []string    `json:"blacklist"`
}

// LoadFromFileJSON reads a {"filter-type": {...}} document and replaces the
// configuration of every filter it mentions, publishing a single new
// snapshot. Filters absent from the file keep their current configuration,
// so the file can be partial and reloaded for live changes.
func (s *Store) LoadFromFileJSON(p string, updatedBy string) error {
	raw, err := os.ReadFile(p)
	if err != nil {
		return err
	}

	var doc map[string]filterFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse policy file %s: %w", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	next := &Snapshot{
		Version: old.Version + 1,
		filters: make(map[flagstore.FlagType]Filter, len(old.filters)),
	}
	for k, v := range old.filters {
		next.filters[k] = v
	}

	now := time.Now().UTC()
	for name, ff := range doc {
		t := flagstore.FlagType(name)
		f := old.For(t)
		if ff.Sensitivity != "" {
			if !ff.Sensitivity.Valid() {
				return fmt.Errorf("invalid sensitivity for filter %s: %q", name, ff.Sensitivity)
			}
			f.Sensitivity = ff.Sensitivity
		}
		if ff.Enabled != nil {
			f.Enabled = *ff.Enabled
		}
		if ff.Whitelist != nil {
			f.Whitelist = lowerSet(ff.Whitelist)
		}
		if ff.Blacklist != nil {
			f.Blacklist = lowerSet(ff.Blacklist)
		}
		f.Type = t
		f.UpdatedAt = now
		f.UpdatedBy = updatedBy
		next.filters[t] = f
	}

	s.cur.Store(next)
	return nil
}
