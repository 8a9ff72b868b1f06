package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PushEnvelope is the message produced by the backend and consumed by this
// service. Payload is the untrusted wire blob destined for the user's
// devices; no schema is enforced on it here.
type PushEnvelope struct {
	RequestID string          `json:"request_id"`
	UserID    string          `json:"user_id"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps an arbitrary payload into an envelope with a fresh
// request id.
func NewEnvelope(userID string, payload any) (*PushEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &PushEnvelope{
		RequestID: uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		Payload:   raw,
	}, nil
}
