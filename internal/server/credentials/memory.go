package credentials

import (
	"context"
	"crypto/subtle"
	"sync"

	"github.com/dmitrijs2005/gophchat/internal/common"
)

type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]string)}
}

func (s *MemoryStore) Exists(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *MemoryStore) Verify(_ context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want, ok := s.users[username]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
}

func (s *MemoryStore) Create(_ context.Context, username, password string) error {
	if err := Validate(username); err != nil {
		return err
	}
	if err := Validate(password); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; ok {
		return common.ErrAlreadyExists
	}
	s.users[username] = password
	return nil
}

func (s *MemoryStore) Close() error { return nil }
