// Package clients tracks the application sessions currently open in
// browsers. The delivery pipeline uses it the way a service worker uses
// clients.matchAll(): to find out whether anyone is looking at the app
// before raising a system notification, and to post protocol messages to
// open pages.
package clients

import (
	"context"
	"time"

	"github.com/sousei-dev/push-service/internal/models"
)

// Session is one registered page instance. Focused tracks whether the
// page reported itself visible and focused; it is the signal that
// suppresses system notifications.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Focused      bool      `json:"focused"`
	UserAgent    string    `json:"user_agent,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Registry is the session directory plus the worker-to-page message
// transport. Lookup failures degrade to empty results; a broken registry
// must never block push delivery.
type Registry interface {
	Register(ctx context.Context, s Session) error
	Heartbeat(ctx context.Context, sessionID string) error
	SetFocus(ctx context.Context, sessionID string, focused bool) error
	Deregister(ctx context.Context, sessionID string) error

	// Sessions lists the open sessions of one user.
	Sessions(ctx context.Context, userID string) ([]Session, error)

	// Post delivers a message to a single session.
	Post(ctx context.Context, sessionID string, msg models.ClientMessage) error
	// Broadcast delivers a message to every session of one user.
	Broadcast(ctx context.Context, userID string, msg models.ClientMessage) error
	// BroadcastAll delivers a message to every registered session.
	BroadcastAll(ctx context.Context, msg models.ClientMessage) error

	// Drain removes and returns the messages a session has not yet
	// fetched. Registries that push messages out of process (pub/sub)
	// hold nothing back and return an empty slice.
	Drain(ctx context.Context, sessionID string) ([]models.ClientMessage, error)
}

// FindFocused returns the first focused session, if any. When several
// sessions are focused (multiple windows) the first one wins; any focused
// session suppresses system notifications for the whole user.
func FindFocused(sessions []Session) (Session, bool) {
	for _, s := range sessions {
		if s.Focused {
			return s, true
		}
	}
	return Session{}, false
}
