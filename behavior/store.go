package behavior

import (
	"context"
	"sync"
	"time"
)

// Store persists suspicion flags for the moderation review queue.
// Append-only; flags are never updated or deleted.
type Store interface {
	Add(ctx context.Context, flag SuspicionFlag) error
	// ForAccount returns the account's flags, oldest first.
	ForAccount(ctx context.Context, accountID string) ([]SuspicionFlag, error)
	// Recent returns flags detected at or after since, across all accounts,
	// oldest first.
	Recent(ctx context.Context, since time.Time) ([]SuspicionFlag, error)
}

type MemStore struct {
	mu    sync.RWMutex
	flags []SuspicionFlag
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Add(ctx context.Context, flag SuspicionFlag) error {
	if flag.DetectedAt.IsZero() {
		flag.DetectedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = append(s.flags, flag)
	return nil
}

func (s *MemStore) ForAccount(ctx context.Context, accountID string) ([]SuspicionFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SuspicionFlag
	for _, f := range s.flags {
		if f.AccountID == accountID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemStore) Recent(ctx context.Context, since time.Time) ([]SuspicionFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SuspicionFlag
	for _, f := range s.flags {
		if !f.DetectedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}
