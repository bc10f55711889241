package memory

import (
	"context"
	"sync"

	"github.com/vietddude/vitality/internal/infra/storage"
)

// MemoryStorage keeps option overrides for the lifetime of the process.
type MemoryStorage struct {
	options map[string]string
	mu      sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		options: make(map[string]string),
	}
}

func (s *MemoryStorage) SaveOption(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[name] = value
	return nil
}

func (s *MemoryStorage) LoadOptions(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.options))
	for k, v := range s.options {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStorage) DeleteOption(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.options[name]; !ok {
		return storage.ErrOptionNotFound
	}
	delete(s.options, name)
	return nil
}

var _ storage.OptionRepository = (*MemoryStorage)(nil)
