package flagstore

import (
	"context"
	"sync"
	"time"

	"github.com/inkhaven-social/warden/content"
)

type MemFlagStore struct {
	mu   sync.RWMutex
	data map[string][]ContentFlag
}

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		data: make(map[string][]ContentFlag),
	}
}

func (s *MemFlagStore) Add(ctx context.Context, flag ContentFlag) error {
	if flag.FlaggedAt.IsZero() {
		flag.FlaggedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := flag.Subject.String()
	s.data[k] = append(s.data[k], flag)
	return nil
}

func (s *MemFlagStore) Get(ctx context.Context, subject content.Ref) ([]ContentFlag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[subject.String()]
	if !ok {
		return []ContentFlag{}, nil
	}
	out := make([]ContentFlag, len(v))
	copy(out, v)
	return out, nil
}
