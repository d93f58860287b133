package domain

import "time"

// OutcomeState captures where a deployment attempt stands.
type OutcomeState string

const (
	OutcomePending   OutcomeState = "pending"
	OutcomeSucceeded OutcomeState = "succeeded"
	OutcomeFailed    OutcomeState = "failed"
)

// FailureReason classifies why a deployment attempt failed.
type FailureReason string

const (
	ReasonAuthRejected  FailureReason = "auth_rejected"
	ReasonSuspended     FailureReason = "account_suspended"
	ReasonQuotaExceeded FailureReason = "quota_exceeded"
	ReasonRejected      FailureReason = "request_rejected"
	ReasonBuildError    FailureReason = "build_error"
	ReasonTimeout       FailureReason = "timeout"
	ReasonTransient     FailureReason = "transient"
)

// Permanent reports whether the reason disqualifies the account until an
// administrative reset. Transient reasons leave the account in rotation.
func (r FailureReason) Permanent() bool {
	switch r {
	case ReasonAuthRejected, ReasonSuspended, ReasonQuotaExceeded:
		return true
	}
	return false
}

// Attempt records a single try of one artifact against one account. The
// orchestrator creates one per candidate; attempts are never persisted,
// only the aggregate usage counters are.
type Attempt struct {
	ID          string
	AccountID   string
	Outcome     OutcomeState
	URL         string
	RemoteID    string
	Reason      FailureReason
	Detail      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// Succeeded reports whether the attempt reached a ready deployment.
func (a Attempt) Succeeded() bool {
	return a.Outcome == OutcomeSucceeded
}

// AttemptFailure pairs an account with the reason its attempt failed,
// used for exhaustion diagnostics.
type AttemptFailure struct {
	AccountID string        `json:"accountId"`
	Reason    FailureReason `json:"reason"`
	Detail    string        `json:"detail,omitempty"`
}
