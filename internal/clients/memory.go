package clients

import (
	"context"
	"errors"
	"sync"

	"github.com/sousei-dev/push-service/internal/models"
)

// ErrSessionNotFound is returned for operations on unknown or expired
// sessions.
var ErrSessionNotFound = errors.New("clients: session not found")

// maxOutbox bounds a session's pending messages; when a page stops
// polling, the oldest messages are discarded first.
const maxOutbox = 256

// MemoryRegistry is an in-process Registry used when Redis is not
// configured (single-instance deployments) and as the test double.
// Posted messages are kept in per-session outboxes that pages fetch
// through GET /clients/:id/messages; an outbox is dropped with its
// session and capped so an abandoned session cannot grow one unbounded.
type MemoryRegistry struct {
	mu       sync.Mutex
	sessions map[string]Session
	outboxes map[string][]models.ClientMessage
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		sessions: make(map[string]Session),
		outboxes: make(map[string][]models.ClientMessage),
	}
}

func (r *MemoryRegistry) Register(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
	return nil
}

func (r *MemoryRegistry) Heartbeat(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (r *MemoryRegistry) SetFocus(_ context.Context, sessionID string, focused bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrSessionNotFound
	}
	s.Focused = focused
	r.sessions[sessionID] = s
	return nil
}

func (r *MemoryRegistry) Deregister(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	delete(r.outboxes, sessionID)
	return nil
}

func (r *MemoryRegistry) Sessions(_ context.Context, userID string) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) Post(_ context.Context, sessionID string, msg models.ClientMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	outbox := append(r.outboxes[sessionID], msg)
	if len(outbox) > maxOutbox {
		outbox = outbox[len(outbox)-maxOutbox:]
	}
	r.outboxes[sessionID] = outbox
	return nil
}

func (r *MemoryRegistry) Broadcast(ctx context.Context, userID string, msg models.ClientMessage) error {
	sessions, _ := r.Sessions(ctx, userID)
	for _, s := range sessions {
		_ = r.Post(ctx, s.ID, msg)
	}
	return nil
}

func (r *MemoryRegistry) BroadcastAll(_ context.Context, msg models.ClientMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sessions {
		outbox := append(r.outboxes[id], msg)
		if len(outbox) > maxOutbox {
			outbox = outbox[len(outbox)-maxOutbox:]
		}
		r.outboxes[id] = outbox
	}
	return nil
}

// Drain removes and returns the pending messages of a session.
func (r *MemoryRegistry) Drain(_ context.Context, sessionID string) ([]models.ClientMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return nil, ErrSessionNotFound
	}
	msgs := r.outboxes[sessionID]
	delete(r.outboxes, sessionID)
	return msgs, nil
}
