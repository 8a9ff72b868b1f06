package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/sousei-dev/push-service/internal/models"
)

// MemoryStore is an in-process Store used in tests and in database-less
// development runs.
type MemoryStore struct {
	mu   sync.Mutex
	subs map[string]models.PushSubscription // keyed by endpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]models.PushSubscription)}
}

func (m *MemoryStore) Upsert(_ context.Context, sub models.PushSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.subs[sub.Endpoint]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = time.Now()
	}
	sub.UpdatedAt = time.Now()
	m.subs[sub.Endpoint] = sub
	return nil
}

func (m *MemoryStore) DeleteByEndpoint(_ context.Context, endpoint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[endpoint]; !ok {
		return false, nil
	}
	delete(m.subs, endpoint)
	return true, nil
}

func (m *MemoryStore) ListByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range m.subs {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountByUser(ctx context.Context, userID string) (int64, error) {
	subs, err := m.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int64(len(subs)), nil
}
