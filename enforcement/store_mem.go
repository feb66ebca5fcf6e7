package enforcement

import (
	"context"
	"sync"
	"time"
)

// MemStore is a process-local Store for tests and single-instance
// deployments. The mutex makes the supersede-on-create step atomic.
type MemStore struct {
	mu          sync.RWMutex
	suspensions map[string][]Suspension
	shadowbans  map[string][]Shadowban
}

func NewMemStore() *MemStore {
	return &MemStore{
		suspensions: make(map[string][]Suspension),
		shadowbans:  make(map[string][]Shadowban),
	}
}

func (s *MemStore) CreateSuspension(ctx context.Context, susp Suspension) error {
	if susp.SuspendedAt.IsZero() {
		susp.SuspendedAt = time.Now().UTC()
	}
	susp.Active = true

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.suspensions[susp.AccountID]
	for i := range rows {
		rows[i].Active = false
	}
	s.suspensions[susp.AccountID] = append(rows, susp)
	return nil
}

func (s *MemStore) ActiveSuspension(ctx context.Context, accountID string) (*Suspension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.suspensions[accountID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Active {
			out := rows[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemStore) DeactivateSuspension(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.suspensions[accountID]
	found := false
	for i := range rows {
		if rows[i].Active {
			rows[i].Active = false
			found = true
		}
	}
	return found, nil
}

func (s *MemStore) SuspensionHistory(ctx context.Context, accountID string) ([]Suspension, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.suspensions[accountID]
	out := make([]Suspension, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *MemStore) ExpireSuspensions(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expired := 0
	for _, rows := range s.suspensions {
		for i := range rows {
			if rows[i].Active && rows[i].ExpiredAt(now) {
				rows[i].Active = false
				expired++
			}
		}
	}
	return expired, nil
}

func (s *MemStore) CreateShadowban(ctx context.Context, ban Shadowban) error {
	if ban.AppliedAt.IsZero() {
		ban.AppliedAt = time.Now().UTC()
	}
	ban.Active = true

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.shadowbans[ban.AccountID]
	for i := range rows {
		rows[i].Active = false
	}
	s.shadowbans[ban.AccountID] = append(rows, ban)
	return nil
}

func (s *MemStore) ActiveShadowban(ctx context.Context, accountID string) (*Shadowban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.shadowbans[accountID]
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Active {
			out := rows[i]
			return &out, nil
		}
	}
	return nil, nil
}

func (s *MemStore) DeactivateShadowban(ctx context.Context, accountID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.shadowbans[accountID]
	found := false
	for i := range rows {
		if rows[i].Active {
			rows[i].Active = false
			found = true
		}
	}
	return found, nil
}

func (s *MemStore) ShadowbanHistory(ctx context.Context, accountID string) ([]Shadowban, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.shadowbans[accountID]
	out := make([]Shadowban, len(rows))
	copy(out, rows)
	return out, nil
}
