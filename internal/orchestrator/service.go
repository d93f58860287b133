// Package orchestrator drives a deployment end to end: candidate
// selection, per-account attempts, and the store side effects that keep
// quota counters honest.
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/IamSamk/Portfolify/internal/domain"
	"github.com/IamSamk/Portfolify/internal/selector"
	"github.com/IamSamk/Portfolify/internal/ws"
)

// Deployer performs one deployment attempt with one account's credential.
type Deployer interface {
	Deploy(ctx context.Context, account domain.Account, artifact domain.Artifact) domain.Attempt
}

// CredentialStore exposes the quota state the orchestrator reads and mutates.
type CredentialStore interface {
	Snapshot() []domain.Account
	RecordSuccess(id string) error
	RecordFailure(id string, permanent bool) error
}

// ResultCode names the terminal outcome classes of a deploy call.
type ResultCode string

const (
	CodeSucceeded       ResultCode = "succeeded"
	CodeInvalidArtifact ResultCode = "invalid_artifact"
	CodeNoAccounts      ResultCode = "no_accounts_available"
	CodeExhausted       ResultCode = "all_accounts_exhausted"
)

// Result is the terminal outcome of a Deploy call. It is always one of
// the named codes; raw provider errors never escape.
type Result struct {
	Code         ResultCode
	Success      bool
	URL          string
	RemoteID     string
	AccountUsed  string
	AccountUsage string
	Message      string
	Failures     []domain.AttemptFailure
	// PersistWarning is set when the deployment succeeded but the usage
	// counter could not be saved; the next restart may over-deploy.
	PersistWarning string
}

// Service orchestrates deployments across the account rotation.
type Service struct {
	store  CredentialStore
	client Deployer
	hub    *ws.Hub
	logger *slog.Logger
}

// New constructs an orchestrator service.
func New(store CredentialStore, client Deployer, hub *ws.Hub, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{store: store, client: client, hub: hub, logger: logger}
}

// Deploy publishes the artifact using the least-used eligible account,
// falling through the frozen candidate list until one attempt succeeds.
// At most one deployment succeeds per call; the first success wins.
func (s Service) Deploy(ctx context.Context, artifact domain.Artifact) Result {
	slug := domain.Slugify(artifact.ProjectName)
	if slug == "" {
		recordDeployment(CodeInvalidArtifact)
		return Result{Code: CodeInvalidArtifact, Message: "project name is required"}
	}
	if strings.TrimSpace(artifact.Content) == "" {
		recordDeployment(CodeInvalidArtifact)
		return Result{Code: CodeInvalidArtifact, Message: "html content is required"}
	}
	artifact.ProjectName = slug

	candidates, err := selector.Candidates(s.store.Snapshot())
	if err != nil {
		if errors.Is(err, selector.ErrNoAccounts) {
			s.logger.Warn("no deployment accounts available", "project", slug)
			recordDeployment(CodeNoAccounts)
			return Result{
				Code:    CodeNoAccounts,
				Message: "no deployment accounts available; add or reset credentials in the admin panel",
			}
		}
		recordDeployment(CodeNoAccounts)
		return Result{Code: CodeNoAccounts, Message: err.Error()}
	}

	failures := make([]domain.AttemptFailure, 0, len(candidates))
	for _, account := range candidates {
		s.logger.Info("attempting deployment",
			"project", slug,
			"account_id", account.ID,
			"usage", account.Usage(),
		)
		s.emit(eventAttempting, slug, account.ID, "", "")
		started := time.Now()
		attempt := s.client.Deploy(ctx, account, artifact)
		observeAttempt(attempt, time.Since(started))

		if attempt.Succeeded() {
			result := Result{
				Code:         CodeSucceeded,
				Success:      true,
				URL:          attempt.URL,
				RemoteID:     attempt.RemoteID,
				AccountUsed:  account.ID,
				AccountUsage: usageAfterSuccess(account),
				Message:      "deployment ready",
			}
			if err := s.store.RecordSuccess(account.ID); err != nil {
				// The deployment is live either way; flag the unsaved
				// counter so operators know quota tracking drifted.
				s.logger.Error("usage counter not persisted", "account_id", account.ID, "error", err)
				result.PersistWarning = err.Error()
			}
			s.logger.Info("deployment succeeded",
				"project", slug,
				"account_id", account.ID,
				"url", attempt.URL,
			)
			s.emit(eventSucceeded, slug, account.ID, attempt.URL, "")
			recordDeployment(CodeSucceeded)
			return result
		}

		permanent := attempt.Reason.Permanent()
		s.logger.Warn("deployment attempt failed",
			"project", slug,
			"account_id", account.ID,
			"reason", attempt.Reason,
			"permanent", permanent,
			"detail", attempt.Detail,
		)
		if err := s.store.RecordFailure(account.ID, permanent); err != nil {
			s.logger.Warn("failure not recorded", "account_id", account.ID, "error", err)
		}
		failures = append(failures, domain.AttemptFailure{
			AccountID: account.ID,
			Reason:    attempt.Reason,
			Detail:    attempt.Detail,
		})
		s.emit(eventFailed, slug, account.ID, "", string(attempt.Reason))
	}

	s.logger.Error("all deployment accounts exhausted", "project", slug, "attempts", len(failures))
	recordDeployment(CodeExhausted)
	return Result{
		Code:     CodeExhausted,
		Message:  "deployment failed with every available account",
		Failures: failures,
	}
}

// usageAfterSuccess renders the counter as it stands once this success
// is attributed, from the frozen snapshot the candidate came from.
func usageAfterSuccess(account domain.Account) string {
	account.DeploymentsUsed++
	return account.Usage()
}
