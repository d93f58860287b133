// Package store owns the in-memory deployment account list and its
// durable JSON mirror. All counter mutations are serialized behind one
// mutex and flushed to disk before the mutation is visible to callers.
package store

import (
	"errors"
	"fmt"
	"sync"

	"log/slog"

	"github.com/IamSamk/Portfolify/internal/domain"
)

// ErrAccountNotFound indicates the named account is not registered.
var ErrAccountNotFound = errors.New("store: account not found")

// ErrAccountExists indicates an account id collision on Add.
var ErrAccountExists = errors.New("store: account already exists")

// Store is the credential store. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	accounts []*domain.Account
	path     string
	encKey   string
	logger   *slog.Logger
}

// New builds a store seeded with the statically configured accounts.
// Call Load afterwards to merge persisted usage onto the seed.
func New(path, encryptionKey string, seed []domain.Account, logger *slog.Logger) *Store {
	accounts := make([]*domain.Account, 0, len(seed))
	for i := range seed {
		account := seed[i]
		accounts = append(accounts, &account)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		accounts: accounts,
		path:     path,
		encKey:   encryptionKey,
		logger:   logger,
	}
}

// Snapshot returns a consistent copy of all accounts in configuration order.
func (s *Store) Snapshot() []domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() []domain.Account {
	out := make([]domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, *account)
	}
	return out
}

// Get returns a copy of one account.
func (s *Store) Get(id string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.findLocked(id)
	if account == nil {
		return domain.Account{}, ErrAccountNotFound
	}
	return *account, nil
}

// RecordSuccess attributes one successful deployment to the account and
// flushes the counters. A save failure is returned so callers can surface
// the risk of quota overrun; the in-memory increment is kept either way.
func (s *Store) RecordSuccess(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.findLocked(id)
	if account == nil {
		return ErrAccountNotFound
	}
	account.DeploymentsUsed++
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist usage for %s: %w", id, err)
	}
	return nil
}

// RecordFailure notes a failed attempt. Permanent failures disable the
// account until an administrative reset; transient ones change nothing.
func (s *Store) RecordFailure(id string, permanent bool) error {
	if !permanent {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.findLocked(id)
	if account == nil {
		return ErrAccountNotFound
	}
	account.Active = false
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist disable for %s: %w", id, err)
	}
	return nil
}

// Reset zeroes the usage counter and re-enables the account. Idempotent.
func (s *Store) Reset(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.findLocked(id)
	if account == nil {
		return ErrAccountNotFound
	}
	account.DeploymentsUsed = 0
	account.Active = true
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist reset for %s: %w", id, err)
	}
	return nil
}

// ResetAll resets every registered account.
func (s *Store) ResetAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		account.DeploymentsUsed = 0
		account.Active = true
	}
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist reset: %w", err)
	}
	return nil
}

// Add registers a runtime account from the admin surface. Its credential
// is persisted encrypted so the account survives restarts.
func (s *Store) Add(account domain.Account) error {
	if account.ID == "" {
		return errors.New("store: account id required")
	}
	if !account.HasCredential() {
		return errors.New("store: account credential required")
	}
	if account.MaxDeployments <= 0 {
		return errors.New("store: account max deployments must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findLocked(account.ID) != nil {
		return ErrAccountExists
	}
	account.Active = true
	account.RuntimeAdded = true
	s.accounts = append(s.accounts, &account)
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist account %s: %w", account.ID, err)
	}
	return nil
}

// Remove deletes an account from the rotation. Environment-sourced
// accounts reappear on restart; runtime-added ones are gone for good.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, account := range s.accounts {
		if account.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrAccountNotFound
	}
	s.accounts = append(s.accounts[:idx], s.accounts[idx+1:]...)
	if err := s.saveLocked(); err != nil {
		return fmt.Errorf("persist removal of %s: %w", id, err)
	}
	return nil
}

func (s *Store) findLocked(id string) *domain.Account {
	for _, account := range s.accounts {
		if account.ID == id {
			return account
		}
	}
	return nil
}
