package behavior

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/inkhaven-social/warden/content"
)

// ContentActivity is one row of an account's posting history, as reported by
// the platform's activity store.
type ContentActivity struct {
	Ref       content.Ref `json:"ref"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"created_at"`
}

// ActivityStore is the read-only window onto account history the anomaly
// detector works from. The platform owns the data; the detector only asks
// narrow questions and never writes back.
type ActivityStore interface {
	// AccountCreatedAt returns when the account was registered.
	AccountCreatedAt(ctx context.Context, accountID string) (time.Time, error)
	// RecentContent returns the account's content created at or after since,
	// oldest first.
	RecentContent(ctx context.Context, accountID string, since time.Time) ([]ContentActivity, error)
	// SharedIPAccounts maps each IP the account has used to the distinct
	// accounts seen on that IP (including this one), from session records.
	SharedIPAccounts(ctx context.Context, accountID string) (map[string][]string, error)
	// ActiveAccounts lists accounts with any activity at or after since, for
	// scheduled scans.
	ActiveAccounts(ctx context.Context, since time.Time) ([]string, error)
}

// MemActivityStore is an in-process ActivityStore for tests and fixtures.
type MemActivityStore struct {
	mu       sync.RWMutex
	created  map[string]time.Time
	activity map[string][]ContentActivity
	ips      map[string][]string // account -> IPs used
	byIP     map[string][]string // IP -> accounts seen
}

func NewMemActivityStore() *MemActivityStore {
	return &MemActivityStore{
		created:  make(map[string]time.Time),
		activity: make(map[string][]ContentActivity),
		ips:      make(map[string][]string),
		byIP:     make(map[string][]string),
	}
}

func (s *MemActivityStore) AddAccount(accountID string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[accountID] = createdAt
}

func (s *MemActivityStore) AddContent(accountID string, act ContentActivity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity[accountID] = append(s.activity[accountID], act)
}

func (s *MemActivityStore) AddSession(accountID, ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !containsString(s.ips[accountID], ip) {
		s.ips[accountID] = append(s.ips[accountID], ip)
	}
	if !containsString(s.byIP[ip], accountID) {
		s.byIP[ip] = append(s.byIP[ip], accountID)
	}
}

func (s *MemActivityStore) AccountCreatedAt(ctx context.Context, accountID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created[accountID], nil
}

func (s *MemActivityStore) RecentContent(ctx context.Context, accountID string, since time.Time) ([]ContentActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ContentActivity
	for _, act := range s.activity[accountID] {
		if !act.CreatedAt.Before(since) {
			out = append(out, act)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemActivityStore) SharedIPAccounts(ctx context.Context, accountID string) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string)
	for _, ip := range s.ips[accountID] {
		accounts := make([]string, len(s.byIP[ip]))
		copy(accounts, s.byIP[ip])
		out[ip] = accounts
	}
	return out, nil
}

func (s *MemActivityStore) ActiveAccounts(ctx context.Context, since time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for accountID, acts := range s.activity {
		for _, act := range acts {
			if !act.CreatedAt.Before(since) {
				out = append(out, accountID)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func containsString(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}
