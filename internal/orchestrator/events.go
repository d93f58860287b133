package orchestrator

import (
	"encoding/json"
	"time"
)

// Topic is the hub topic deployment progress events are published on.
const Topic = "deployments"

const (
	eventAttempting = "attempting"
	eventSucceeded  = "succeeded"
	eventFailed     = "failed"
)

// Event is the wire shape of a deployment progress notification.
type Event struct {
	Type      string    `json:"type"`
	Project   string    `json:"project"`
	AccountID string    `json:"accountId"`
	URL       string    `json:"url,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s Service) emit(eventType, project, accountID, url, reason string) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Project:   project,
		AccountID: accountID,
		URL:       url,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to marshal deployment event", "error", err)
		return
	}
	s.hub.Broadcast(Topic, payload)
}
