package storage

import (
	"context"
	"sync"

	"risparmio/internal/core"
)

// MemoryStore is an in-memory AccountStore. State lives for the process
// lifetime only.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]core.Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]core.Account)}
}

func (s *MemoryStore) GetAccount(_ context.Context, user string) (core.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[user]
	if !ok {
		return core.Account{User: user}, nil
	}
	return acct, nil
}

func (s *MemoryStore) SaveAccount(_ context.Context, account core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.User] = account
	return nil
}
