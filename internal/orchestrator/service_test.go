package orchestrator

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"log/slog"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore counts mutations without touching disk.
type fakeStore struct {
	accounts     []domain.Account
	successCalls []string
	failureCalls []struct {
		id        string
		permanent bool
	}
	successErr error
}

func (f *fakeStore) Snapshot() []domain.Account {
	return append([]domain.Account(nil), f.accounts...)
}

func (f *fakeStore) RecordSuccess(id string) error {
	f.successCalls = append(f.successCalls, id)
	return f.successErr
}

func (f *fakeStore) RecordFailure(id string, permanent bool) error {
	f.failureCalls = append(f.failureCalls, struct {
		id        string
		permanent bool
	}{id, permanent})
	return nil
}

// scriptedDeployer returns a canned attempt per account id.
type scriptedDeployer struct {
	outcomes map[string]domain.Attempt
	calls    []string
}

func (d *scriptedDeployer) Deploy(ctx context.Context, account domain.Account, artifact domain.Artifact) domain.Attempt {
	d.calls = append(d.calls, account.ID)
	attempt, ok := d.outcomes[account.ID]
	if !ok {
		attempt = domain.Attempt{Outcome: domain.OutcomeFailed, Reason: domain.ReasonTransient}
	}
	attempt.AccountID = account.ID
	attempt.StartedAt = time.Now().UTC()
	attempt.CompletedAt = time.Now().UTC()
	return attempt
}

func activeAccount(id string, used, max int) domain.Account {
	return domain.Account{ID: id, Credential: "token-" + id, DeploymentsUsed: used, MaxDeployments: max, Active: true}
}

func success(url, remoteID string) domain.Attempt {
	return domain.Attempt{Outcome: domain.OutcomeSucceeded, URL: url, RemoteID: remoteID}
}

func failed(reason domain.FailureReason) domain.Attempt {
	return domain.Attempt{Outcome: domain.OutcomeFailed, Reason: reason}
}

func TestDeployRejectsEmptySlugWithoutNetworkCall(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{activeAccount("a1", 0, 100)}}
	client := &scriptedDeployer{}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("!!!", "<h1>hi</h1>"))
	if result.Code != CodeInvalidArtifact {
		t.Fatalf("expected CodeInvalidArtifact, got %s", result.Code)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(client.calls))
	}
}

func TestDeployRejectsEmptyContent(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{activeAccount("a1", 0, 100)}}
	client := &scriptedDeployer{}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("my-site", "   "))
	if result.Code != CodeInvalidArtifact {
		t.Fatalf("expected CodeInvalidArtifact, got %s", result.Code)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected no provider calls, got %d", len(client.calls))
	}
}

func TestDeployNoAccountsAvailable(t *testing.T) {
	inactive := activeAccount("a1", 0, 100)
	inactive.Active = false
	atQuota := activeAccount("a2", 100, 100)
	st := &fakeStore{accounts: []domain.Account{inactive, atQuota}}
	client := &scriptedDeployer{}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("site", "<h1>hi</h1>"))
	if result.Code != CodeNoAccounts {
		t.Fatalf("expected CodeNoAccounts, got %s", result.Code)
	}
	if len(client.calls) != 0 {
		t.Fatalf("expected zero provider calls, got %d", len(client.calls))
	}
}

func TestDeployFirstSuccessWins(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{
		activeAccount("a1", 2, 100),
		activeAccount("a2", 5, 100),
	}}
	client := &scriptedDeployer{outcomes: map[string]domain.Attempt{
		"a1": success("https://site.vercel.app", "dpl_1"),
		"a2": success("https://other.vercel.app", "dpl_2"),
	}}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("site", "<h1>hi</h1>"))
	if !result.Success || result.Code != CodeSucceeded {
		t.Fatalf("expected success, got %+v", result)
	}
	if result.AccountUsed != "a1" {
		t.Fatalf("expected least-used account a1, got %s", result.AccountUsed)
	}
	if result.AccountUsage != "3/100" {
		t.Fatalf("expected usage 3/100, got %s", result.AccountUsage)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", len(client.calls))
	}
	if len(st.successCalls) != 1 || st.successCalls[0] != "a1" {
		t.Fatalf("expected exactly one RecordSuccess for a1, got %v", st.successCalls)
	}
}

func TestDeployFallsThroughOnAuthFailure(t *testing.T) {
	// a1 is least used so it goes first; its auth rejection must disable
	// it and fall through to a2. Uses the real store so the disable and
	// the usage increment are checked end to end.
	path := filepath.Join(t.TempDir(), "stats.json")
	accountStore := store.New(path, "k", []domain.Account{
		{ID: "a1", Credential: "bad-token", DeploymentsUsed: 0, MaxDeployments: 100, Active: true},
		{ID: "a2", Credential: "good-token", DeploymentsUsed: 50, MaxDeployments: 100, Active: true},
	}, testLogger())
	client := &scriptedDeployer{outcomes: map[string]domain.Attempt{
		"a1": failed(domain.ReasonAuthRejected),
		"a2": success("https://my-site.vercel.app", "dpl_9"),
	}}
	svc := New(accountStore, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("My Site!", "<h1>hi</h1>"))
	if !result.Success {
		t.Fatalf("expected success via fallback, got %+v", result)
	}
	if result.AccountUsed != "a2" {
		t.Fatalf("expected a2 to win, got %s", result.AccountUsed)
	}
	if got := client.calls; len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Fatalf("expected attempts [a1 a2], got %v", got)
	}

	a1, err := accountStore.Get("a1")
	if err != nil {
		t.Fatal(err)
	}
	if a1.Active {
		t.Fatal("auth rejection must disable a1")
	}
	a2, err := accountStore.Get("a2")
	if err != nil {
		t.Fatal(err)
	}
	if a2.DeploymentsUsed != 51 {
		t.Fatalf("expected a2 usage incremented once, got %d", a2.DeploymentsUsed)
	}
}

func TestDeploySlugNormalization(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{activeAccount("a1", 0, 100)}}
	var seenName string
	client := &captureDeployer{
		onDeploy: func(artifact domain.Artifact) domain.Attempt {
			seenName = artifact.ProjectName
			return success("https://my-site.vercel.app", "dpl_1")
		},
	}
	svc := New(st, client, nil, testLogger())

	if result := svc.Deploy(context.Background(), domain.NewArtifact("My Site!", "<h1>hi</h1>")); !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if seenName != "my-site" {
		t.Fatalf("expected provider to receive slug my-site, got %q", seenName)
	}
}

type captureDeployer struct {
	onDeploy func(domain.Artifact) domain.Attempt
}

func (d *captureDeployer) Deploy(ctx context.Context, account domain.Account, artifact domain.Artifact) domain.Attempt {
	attempt := d.onDeploy(artifact)
	attempt.AccountID = account.ID
	return attempt
}

func TestDeployTransientFailureDoesNotDisable(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{
		activeAccount("a1", 0, 100),
		activeAccount("a2", 1, 100),
	}}
	client := &scriptedDeployer{outcomes: map[string]domain.Attempt{
		"a1": failed(domain.ReasonTimeout),
		"a2": success("https://site.vercel.app", "dpl_3"),
	}}
	svc := New(st, client, nil, testLogger())

	if result := svc.Deploy(context.Background(), domain.NewArtifact("site", "<h1>hi</h1>")); !result.Success {
		t.Fatalf("expected fallback success, got %+v", result)
	}
	if len(st.failureCalls) != 1 {
		t.Fatalf("expected one RecordFailure, got %d", len(st.failureCalls))
	}
	if st.failureCalls[0].permanent {
		t.Fatal("timeout must be recorded as transient")
	}
}

func TestDeployExhaustionCollectsReasons(t *testing.T) {
	st := &fakeStore{accounts: []domain.Account{
		activeAccount("a1", 0, 100),
		activeAccount("a2", 1, 100),
		activeAccount("a3", 2, 100),
	}}
	client := &scriptedDeployer{outcomes: map[string]domain.Attempt{
		"a1": failed(domain.ReasonTransient),
		"a2": failed(domain.ReasonBuildError),
		"a3": failed(domain.ReasonQuotaExceeded),
	}}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("site", "<h1>hi</h1>"))
	if result.Code != CodeExhausted {
		t.Fatalf("expected CodeExhausted, got %s", result.Code)
	}
	if len(result.Failures) != 3 {
		t.Fatalf("expected 3 diagnostic failures, got %d", len(result.Failures))
	}
	if len(client.calls) != 3 {
		t.Fatalf("expected each candidate tried once, got %v", client.calls)
	}
	// No account may be attempted twice within one call.
	seen := map[string]bool{}
	for _, id := range client.calls {
		if seen[id] {
			t.Fatalf("account %s attempted twice in one deploy call", id)
		}
		seen[id] = true
	}
}

func TestDeployPersistWarningSurfaced(t *testing.T) {
	st := &fakeStore{
		accounts:   []domain.Account{activeAccount("a1", 0, 100)},
		successErr: context.DeadlineExceeded,
	}
	client := &scriptedDeployer{outcomes: map[string]domain.Attempt{
		"a1": success("https://site.vercel.app", "dpl_4"),
	}}
	svc := New(st, client, nil, testLogger())

	result := svc.Deploy(context.Background(), domain.NewArtifact("site", "<h1>hi</h1>"))
	if !result.Success {
		t.Fatalf("deployment should still count as success, got %+v", result)
	}
	if result.PersistWarning == "" {
		t.Fatal("expected a persistence warning on the result")
	}
}
