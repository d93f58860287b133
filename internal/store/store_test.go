package store

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"log/slog"

	"github.com/IamSamk/Portfolify/internal/domain"
)

const testKey = "test-encryption-key"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAccounts() []domain.Account {
	return []domain.Account{
		{ID: "account1", Credential: "token-one", MaxDeployments: 100, Active: true},
		{ID: "account2", Credential: "token-two", MaxDeployments: 100, Active: true},
	}
}

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "deployment-stats.json")
	return New(path, testKey, seedAccounts(), testLogger()), path
}

func TestLoadMissingFileStartsFresh(t *testing.T) {
	s, _ := newTestStore(t)
	s.Load()

	for _, account := range s.Snapshot() {
		if account.DeploymentsUsed != 0 || !account.Active {
			t.Fatalf("expected zeroed counters, got %+v", account)
		}
	}
}

func TestLoadMalformedFileStartsFresh(t *testing.T) {
	s, path := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s.Load()
	if got := s.Snapshot(); len(got) != 2 || got[0].DeploymentsUsed != 0 {
		t.Fatalf("expected fresh seed after malformed load, got %+v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.RecordSuccess("account1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	if err := s.RecordFailure("account2", true); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}

	fresh := New(path, testKey, seedAccounts(), testLogger())
	fresh.Load()

	a1, err := fresh.Get("account1")
	if err != nil {
		t.Fatalf("Get account1: %v", err)
	}
	if a1.DeploymentsUsed != 1 || !a1.Active {
		t.Fatalf("account1 state not restored: %+v", a1)
	}
	a2, err := fresh.Get("account2")
	if err != nil {
		t.Fatalf("Get account2: %v", err)
	}
	if a2.DeploymentsUsed != 0 || a2.Active {
		t.Fatalf("account2 state not restored: %+v", a2)
	}
}

func TestLoadDropsUnknownAccounts(t *testing.T) {
	s, path := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	records := []persistedAccount{
		{ID: "account1", DeploymentsUsed: 7, Active: true},
		{ID: "removed-from-config", DeploymentsUsed: 3, Active: true},
	}
	data, err := json.Marshal(records)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	s.Load()
	if _, err := s.Get("removed-from-config"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected unknown id dropped, got err=%v", err)
	}
	a1, err := s.Get("account1")
	if err != nil {
		t.Fatal(err)
	}
	if a1.DeploymentsUsed != 7 {
		t.Fatalf("expected persisted counter merged, got %d", a1.DeploymentsUsed)
	}
}

func TestRecordSuccessIncrementsExactlyOnce(t *testing.T) {
	s, path := newTestStore(t)
	if err := s.RecordSuccess("account1"); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}

	a1, err := s.Get("account1")
	if err != nil {
		t.Fatal(err)
	}
	if a1.DeploymentsUsed != 1 {
		t.Fatalf("expected exactly one increment, got %d", a1.DeploymentsUsed)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected state file written: %v", err)
	}
}

func TestRecordSuccessUnknownAccount(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.RecordSuccess("ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransientFailuresDoNotDisable(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.RecordFailure("account1", false); err != nil {
			t.Fatalf("transient RecordFailure: %v", err)
		}
	}
	a1, _ := s.Get("account1")
	if !a1.Active {
		t.Fatal("transient failures must not disable the account")
	}

	if err := s.RecordFailure("account1", true); err != nil {
		t.Fatalf("permanent RecordFailure: %v", err)
	}
	a1, _ = s.Get("account1")
	if a1.Active {
		t.Fatal("permanent failure must disable the account")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.RecordSuccess("account1"); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordFailure("account1", true); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Reset("account1"); err != nil {
			t.Fatalf("Reset call %d: %v", i+1, err)
		}
		a1, _ := s.Get("account1")
		if a1.DeploymentsUsed != 0 || !a1.Active {
			t.Fatalf("reset state wrong after call %d: %+v", i+1, a1)
		}
	}
}

func TestResetAll(t *testing.T) {
	s, _ := newTestStore(t)
	_ = s.RecordSuccess("account1")
	_ = s.RecordSuccess("account2")
	_ = s.RecordFailure("account2", true)

	if err := s.ResetAll(); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	for _, account := range s.Snapshot() {
		if account.DeploymentsUsed != 0 || !account.Active {
			t.Fatalf("expected reset state, got %+v", account)
		}
	}
}

func TestRuntimeAccountSurvivesRestart(t *testing.T) {
	s, path := newTestStore(t)
	added := domain.Account{
		ID:             "extra",
		Credential:     "secret-token-extra",
		TeamID:         "team_123",
		MaxDeployments: 50,
	}
	if err := s.Add(added); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// Credential must not hit the disk in plaintext.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Fatal("state file empty after Add")
	}
	if strings.Contains(string(raw), added.Credential) {
		t.Fatal("credential persisted in plaintext")
	}

	fresh := New(path, testKey, seedAccounts(), testLogger())
	fresh.Load()
	got, err := fresh.Get("extra")
	if err != nil {
		t.Fatalf("runtime account not revived: %v", err)
	}
	if got.Credential != added.Credential || got.TeamID != "team_123" || got.MaxDeployments != 50 {
		t.Fatalf("runtime account state wrong: %+v", got)
	}
	if !got.RuntimeAdded {
		t.Fatal("revived account should keep the runtime-added flag")
	}
}

func TestAddRejectsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(domain.Account{ID: "account1", Credential: "x", MaxDeployments: 10}); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Remove("account2"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get("account2"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected account gone, got %v", err)
	}
	if err := s.Remove("account2"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound on second remove, got %v", err)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(t)
	snapshot := s.Snapshot()
	snapshot[0].DeploymentsUsed = 999

	a1, _ := s.Get("account1")
	if a1.DeploymentsUsed != 0 {
		t.Fatal("mutating a snapshot must not affect the store")
	}
}
