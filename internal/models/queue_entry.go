package models

import (
	"encoding/json"
	"time"
)

// QueueEntry is a persisted record of one mutating request awaiting
// successful delivery to the records API.
type QueueEntry struct {
	ID          string            `json:"id"`
	Endpoint    string            `json:"endpoint"`
	Method      string            `json:"method"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	RetryCount  int               `json:"retry_count"`
	LastRetryAt *time.Time        `json:"last_retry_at,omitempty"`
}

// FormSnapshot preserves in-progress form input across restarts and
// disconnects. Cleared once the owning form is submitted successfully.
type FormSnapshot struct {
	FormID  string            `json:"form_id"`
	Fields  map[string]string `json:"fields"`
	SavedAt time.Time         `json:"saved_at"`
}

// ConnectivityState is a point-in-time snapshot of the agent's view of the
// remote API.
type ConnectivityState struct {
	Online  bool `json:"online"`
	Syncing bool `json:"syncing"`
}
