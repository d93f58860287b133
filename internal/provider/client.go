// Package provider wraps the hosting provider's deployment API. A Client
// performs exactly one attempt with exactly one account's credential and
// maps every provider response into a classified Attempt; it never
// touches the credential store.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/IamSamk/Portfolify/internal/domain"
)

const (
	deploymentsPath = "/v13/deployments"
	teamHeader      = "Vercel-Team-Id"

	readyStateReady    = "READY"
	readyStateError    = "ERROR"
	readyStateCanceled = "CANCELED"
)

// Client submits deployments and polls them to a terminal state.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	pollAttempts int
	logger       *slog.Logger
}

// New constructs a provider client. pollAttempts bounds the total wait
// for asynchronous readiness; exceeding it yields a timeout failure.
func New(baseURL string, requestTimeout, pollInterval time.Duration, pollAttempts int, logger *slog.Logger) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = "https://api.vercel.com"
	}
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if pollAttempts <= 0 {
		pollAttempts = 30
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      base,
		httpClient:   &http.Client{Timeout: requestTimeout},
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		logger:       logger,
	}
}

type fileEntry struct {
	File string `json:"file"`
	Data string `json:"data"`
}

type createRequest struct {
	Name            string            `json:"name"`
	Files           []fileEntry       `json:"files"`
	ProjectSettings map[string]string `json:"projectSettings"`
	Meta            map[string]string `json:"meta"`
}

type deploymentState struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	ReadyState string `json:"readyState"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// failure carries a classified reason out of the transport helpers.
type failure struct {
	reason domain.FailureReason
	detail string
}

// Deploy publishes the artifact under the account's credential and waits
// for the provider to report a terminal state. Cancellation stops the
// polling loop; a deployment already accepted by the provider stays
// accepted (there is no undo).
func (c *Client) Deploy(ctx context.Context, account domain.Account, artifact domain.Artifact) domain.Attempt {
	attempt := domain.Attempt{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		Outcome:   domain.OutcomePending,
		StartedAt: time.Now().UTC(),
	}

	created, fail := c.submit(ctx, account, artifact)
	if fail != nil {
		return c.failed(attempt, *fail)
	}
	c.logger.Info("deployment submitted",
		"account_id", account.ID,
		"project", artifact.ProjectName,
		"remote_id", created.ID,
		"state", created.ReadyState,
	)

	state := created.ReadyState
	url := created.URL
	for i := 0; i < c.pollAttempts && !terminal(state); i++ {
		select {
		case <-ctx.Done():
			return c.failed(attempt, failure{domain.ReasonTransient, "canceled while polling: " + ctx.Err().Error()})
		case <-time.After(c.pollInterval):
		}
		current, fail := c.status(ctx, account, created.ID)
		if fail != nil {
			// A flaky status endpoint is not a deployment failure;
			// keep polling until the attempt budget runs out.
			c.logger.Warn("deployment status poll failed",
				"account_id", account.ID,
				"remote_id", created.ID,
				"reason", fail.reason,
				"detail", fail.detail,
			)
			continue
		}
		state = current.ReadyState
		if current.URL != "" {
			url = current.URL
		}
	}

	switch state {
	case readyStateReady:
		attempt.Outcome = domain.OutcomeSucceeded
		attempt.URL = normalizeURL(url)
		attempt.RemoteID = created.ID
		attempt.CompletedAt = time.Now().UTC()
		return attempt
	case readyStateError, readyStateCanceled:
		return c.failed(attempt, failure{domain.ReasonBuildError, "provider reported state " + state})
	default:
		return c.failed(attempt, failure{domain.ReasonTimeout, fmt.Sprintf("not ready after %d polls", c.pollAttempts)})
	}
}

func (c *Client) submit(ctx context.Context, account domain.Account, artifact domain.Artifact) (*deploymentState, *failure) {
	payload := createRequest{
		Name: artifact.ProjectName,
		Files: []fileEntry{
			{File: "index.html", Data: base64.StdEncoding.EncodeToString([]byte(artifact.Content))},
			{File: "package.json", Data: base64.StdEncoding.EncodeToString(manifest(artifact.ProjectName))},
		},
		ProjectSettings: map[string]string{"framework": "vanilla"},
		Meta:            map[string]string{"source": "portfolio-designer"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &failure{domain.ReasonRejected, "encode payload: " + err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+deploymentsPath, bytes.NewReader(body))
	if err != nil {
		return nil, &failure{domain.ReasonRejected, "build request: " + err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, account)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &failure{domain.ReasonTransient, err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		fail := classify(resp.StatusCode, resp.Body)
		return nil, &fail
	}

	var created deploymentState
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, &failure{domain.ReasonTransient, "decode response: " + err.Error()}
	}
	if created.ID == "" {
		return nil, &failure{domain.ReasonRejected, "provider accepted request without a deployment id"}
	}
	return &created, nil
}

func (c *Client) status(ctx context.Context, account domain.Account, remoteID string) (*deploymentState, *failure) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+deploymentsPath+"/"+remoteID, nil)
	if err != nil {
		return nil, &failure{domain.ReasonRejected, "build status request: " + err.Error()}
	}
	c.authorize(req, account)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &failure{domain.ReasonTransient, err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		fail := classify(resp.StatusCode, resp.Body)
		return nil, &fail
	}

	var state deploymentState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, &failure{domain.ReasonTransient, "decode status: " + err.Error()}
	}
	return &state, nil
}

func (c *Client) authorize(req *http.Request, account domain.Account) {
	req.Header.Set("Authorization", "Bearer "+account.Credential)
	if account.TeamID != "" {
		req.Header.Set(teamHeader, account.TeamID)
	}
}

func (c *Client) failed(attempt domain.Attempt, fail failure) domain.Attempt {
	attempt.Outcome = domain.OutcomeFailed
	attempt.Reason = fail.reason
	attempt.Detail = fail.detail
	attempt.CompletedAt = time.Now().UTC()
	return attempt
}

// classify maps an HTTP rejection to a failure reason. The body is read
// best-effort for the provider's error envelope.
func classify(status int, body io.Reader) failure {
	detail := fmt.Sprintf("http %d", status)
	var envelope apiError
	data, err := io.ReadAll(io.LimitReader(body, 8192))
	if err == nil && json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
		detail = fmt.Sprintf("http %d: %s", status, envelope.Error.Message)
	}

	code := strings.ToLower(envelope.Error.Code)
	message := strings.ToLower(envelope.Error.Message)
	switch {
	case strings.Contains(code, "suspended") || strings.Contains(message, "suspended"):
		return failure{domain.ReasonSuspended, detail}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return failure{domain.ReasonAuthRejected, detail}
	case status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
		return failure{domain.ReasonQuotaExceeded, detail}
	case strings.Contains(code, "limit") || strings.Contains(message, "limit"):
		return failure{domain.ReasonQuotaExceeded, detail}
	case status >= 500:
		return failure{domain.ReasonTransient, detail}
	default:
		return failure{domain.ReasonRejected, detail}
	}
}

func terminal(state string) bool {
	switch state {
	case readyStateReady, readyStateError, readyStateCanceled:
		return true
	}
	return false
}

func normalizeURL(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}

// manifest renders the package.json published next to the page, matching
// what the designer's export produces.
func manifest(projectName string) []byte {
	data, _ := json.MarshalIndent(map[string]any{
		"name":        projectName,
		"version":     "1.0.0",
		"description": "Website generated by Portfolio Designer",
		"scripts":     map[string]string{"start": "npx serve ."},
	}, "", "  ")
	return data
}
