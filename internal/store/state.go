package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/pkg/crypto"
)

// persistedAccount is the on-disk projection of an account. Counters and
// the active flag are the authoritative durable state; the credential
// fields are present only for runtime-added accounts and are AES-GCM
// sealed with the configured encryption key.
type persistedAccount struct {
	ID              string `json:"id"`
	DeploymentsUsed int    `json:"deploymentsUsed"`
	Active          bool   `json:"active"`
	Credential      []byte `json:"credential,omitempty"`
	TeamID          string `json:"teamId,omitempty"`
	MaxDeployments  int    `json:"maxDeployments,omitempty"`
}

// Load merges the persisted usage record onto the seeded account list.
// Entries matching a configured account overwrite its counters; entries
// carrying an encrypted credential are revived as runtime-added accounts;
// anything else is dropped. A missing or malformed file is a warning,
// never an error: the store starts from zeroed counters.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("usage state unreadable, starting fresh", "path", s.path, "error", err)
		} else {
			s.logger.Info("no usage state found, starting fresh", "path", s.path)
		}
		return
	}

	var records []persistedAccount
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("usage state malformed, starting fresh", "path", s.path, "error", err)
		return
	}

	for _, record := range records {
		if account := s.findLocked(record.ID); account != nil {
			account.DeploymentsUsed = record.DeploymentsUsed
			account.Active = record.Active
			continue
		}
		if len(record.Credential) == 0 {
			// Account removed from configuration; do not resurrect it.
			s.logger.Warn("dropping usage record for unknown account", "account_id", record.ID)
			continue
		}
		token, err := crypto.DecryptToString(s.encKey, record.Credential)
		if err != nil {
			s.logger.Warn("dropping runtime account with undecryptable credential", "account_id", record.ID, "error", err)
			continue
		}
		maxDeployments := record.MaxDeployments
		if maxDeployments <= 0 {
			maxDeployments = 100
		}
		s.accounts = append(s.accounts, &domain.Account{
			ID:              record.ID,
			Credential:      token,
			TeamID:          record.TeamID,
			DeploymentsUsed: record.DeploymentsUsed,
			MaxDeployments:  maxDeployments,
			Active:          record.Active,
			RuntimeAdded:    true,
		})
	}
}

// Save flushes the current projection to disk.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked writes the state file atomically: serialize, write to a
// temp file in the same directory, then rename over the target so a
// crash never leaves a partial record behind.
func (s *Store) saveLocked() error {
	records := make([]persistedAccount, 0, len(s.accounts))
	for _, account := range s.accounts {
		record := persistedAccount{
			ID:              account.ID,
			DeploymentsUsed: account.DeploymentsUsed,
			Active:          account.Active,
		}
		if account.RuntimeAdded {
			sealed, err := crypto.EncryptString(s.encKey, account.Credential)
			if err != nil {
				return fmt.Errorf("seal credential for %s: %w", account.ID, err)
			}
			record.Credential = sealed
			record.TeamID = account.TeamID
			record.MaxDeployments = account.MaxDeployments
		}
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode usage state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".usage-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
