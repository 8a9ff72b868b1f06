package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/models"
	"github.com/sousei-dev/push-service/internal/repository"
	"github.com/sousei-dev/push-service/internal/subscription"
	"github.com/sousei-dev/push-service/pkg/metrics"
	"github.com/sousei-dev/push-service/pkg/retry"
)

type sentPush struct {
	endpoint     string
	notification models.Notification
}

// fakeSender records sends and fails per endpoint on demand.
type fakeSender struct {
	mu    sync.Mutex
	sent  []sentPush
	fail  map[string]error
	calls map[string]int
}

func newFakeSender() *fakeSender {
	return &fakeSender{fail: make(map[string]error), calls: make(map[string]int)}
}

func (f *fakeSender) Send(_ context.Context, sub models.PushSubscription, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[sub.Endpoint]++
	if err, ok := f.fail[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sentPush{endpoint: sub.Endpoint, notification: n})
	return nil
}

type fakeStatusSink struct {
	mu      sync.Mutex
	updates map[string][]string // requestID -> statuses in order
}

func newFakeStatusSink() *fakeStatusSink {
	return &fakeStatusSink{updates: make(map[string][]string)}
}

func (f *fakeStatusSink) UpdateStatus(_ context.Context, requestID, status, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[requestID] = append(f.updates[requestID], status)
	return nil
}

func (f *fakeStatusSink) last(requestID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	statuses := f.updates[requestID]
	if len(statuses) == 0 {
		return ""
	}
	return statuses[len(statuses)-1]
}

type fakeUnread struct {
	mu     sync.Mutex
	counts map[string]int
}

func newFakeUnread() *fakeUnread { return &fakeUnread{counts: make(map[string]int)} }

func (f *fakeUnread) SetUnread(_ context.Context, userID string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID] = count
	return nil
}

func (f *fakeUnread) IncrementUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID]++
	return f.counts[userID], nil
}

func (f *fakeUnread) GetUnread(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[userID], nil
}

type fakeSuppressor struct {
	mu         sync.Mutex
	suppressed map[string]bool
}

func newFakeSuppressor() *fakeSuppressor {
	return &fakeSuppressor{suppressed: make(map[string]bool)}
}

func (f *fakeSuppressor) IsEndpointSuppressed(_ context.Context, endpoint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.suppressed[endpoint], nil
}

func (f *fakeSuppressor) SuppressEndpoint(_ context.Context, endpoint string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suppressed[endpoint] = true
	return nil
}

type pipeline struct {
	handler    *Handler
	registry   *clients.MemoryRegistry
	store      *subscription.MemoryStore
	sender     *fakeSender
	sink       *fakeStatusSink
	unread     *fakeUnread
	suppressor *fakeSuppressor
	metrics    *metrics.Metrics
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := &pipeline{
		registry:   clients.NewMemoryRegistry(),
		store:      subscription.NewMemoryStore(),
		sender:     newFakeSender(),
		sink:       newFakeStatusSink(),
		unread:     newFakeUnread(),
		suppressor: newFakeSuppressor(),
		metrics:    metrics.New(),
	}
	p.handler = NewHandler(
		p.registry,
		p.store,
		p.sender,
		NewStatusUpdater(p.sink, logger),
		p.unread,
		p.suppressor,
		p.metrics,
		logger,
		retry.Config{MaxAttempts: 1},
		"/",
	)
	return p
}

func (p *pipeline) addSubscription(t *testing.T, userID, endpoint string) {
	t.Helper()
	err := p.store.Upsert(context.Background(), models.PushSubscription{
		Endpoint: endpoint,
		UserID:   userID,
		P256dh:   "key",
		Auth:     "auth",
	})
	require.NoError(t, err)
}

func (p *pipeline) addSession(t *testing.T, userID, sessionID string, focused bool) {
	t.Helper()
	err := p.registry.Register(context.Background(), clients.Session{
		ID:      sessionID,
		UserID:  userID,
		Focused: focused,
	})
	require.NoError(t, err)
}

func (p *pipeline) drain(t *testing.T, sessionID string) []models.ClientMessage {
	t.Helper()
	msgs, err := p.registry.Drain(context.Background(), sessionID)
	require.NoError(t, err)
	return msgs
}

func envelope(userID, payload string) *models.PushEnvelope {
	return &models.PushEnvelope{
		RequestID: "req-1",
		UserID:    userID,
		CreatedAt: time.Now(),
		Payload:   []byte(payload),
	}
}

func TestHandlePushSendsWebPushWhenNoClientOpen(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	require.Len(t, p.sender.sent, 1)
	assert.Equal(t, "https://push.example/ep1", p.sender.sent[0].endpoint)
	assert.Equal(t, "x", p.sender.sent[0].notification.Title)
	assert.Equal(t, repository.StatusDelivered, p.sink.last("req-1"))
	assert.EqualValues(t, 1, p.metrics.Snapshot()["displayed"])
}

func TestHandlePushFocusedClientSuppressesSystemNotification(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")
	p.addSession(t, "u1", "s-blur", false)
	p.addSession(t, "u1", "s-focus", true)

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	assert.Empty(t, p.sender.sent, "focused client must suppress Web Push")
	assert.Equal(t, repository.StatusSuppressed, p.sink.last("req-1"))

	msgs := p.drain(t, "s-focus")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MsgPushReceived, msgs[0].Type)
	assert.Empty(t, p.drain(t, "s-blur"), "only the focused session is forwarded to")

	snap := p.metrics.Snapshot()
	assert.EqualValues(t, 1, snap["suppressed"])
	assert.EqualValues(t, 1, snap["forwarded"])
}

func TestHandlePushUnfocusedClientsGetForwardAndWebPush(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")
	p.addSession(t, "u1", "s1", false)
	p.addSession(t, "u1", "s2", false)

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	require.Len(t, p.sender.sent, 1, "web push still goes out when nothing is focused")
	assert.Len(t, p.drain(t, "s1"), 1)
	assert.Len(t, p.drain(t, "s2"), 1)
}

func TestHandlePushHospitalizationForwardType(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", true)

	payload := `{"data":{"type":"hospitalization_notification"}}`
	err := p.handler.HandlePush(context.Background(), envelope("u1", payload))
	require.NoError(t, err)

	msgs := p.drain(t, "s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MsgHospitalization, msgs[0].Type)
}

func TestHandlePushSameTagReplaces(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	payload := `{"data":{"type":"hospitalization_notification"}}`
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))

	require.Len(t, p.sender.sent, 2)
	assert.Equal(t, p.sender.sent[0].notification.Tag, p.sender.sent[1].notification.Tag,
		"repeat events share a tag so the platform replaces instead of stacking")
}

func TestHandlePushPrunesGoneSubscription(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/dead")
	p.addSubscription(t, "u1", "https://push.example/alive")
	p.sender.fail["https://push.example/dead"] = ErrSubscriptionGone

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	subs, err := p.store.ListByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example/alive", subs[0].Endpoint)

	suppressed, err := p.suppressor.IsEndpointSuppressed(context.Background(), "https://push.example/dead")
	require.NoError(t, err)
	assert.True(t, suppressed)
	assert.EqualValues(t, 1, p.metrics.Snapshot()["pruned"])
	assert.Equal(t, repository.StatusDelivered, p.sink.last("req-1"),
		"a pruned endpoint does not fail the event when another send succeeded")
}

func TestHandlePushSuppressedEndpointSkipped(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")
	require.NoError(t, p.suppressor.SuppressEndpoint(context.Background(), "https://push.example/ep1", 0))

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	assert.Empty(t, p.sender.sent)
	assert.Zero(t, p.sender.calls["https://push.example/ep1"])
}

func TestHandlePushSenderFailureDoesNotEscape(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")
	p.sender.fail["https://push.example/ep1"] = errors.New("upstream 500")

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err, "delivery failures settle the event instead of erroring")

	assert.Equal(t, repository.StatusFailed, p.sink.last("req-1"))
	assert.EqualValues(t, 1, p.metrics.Snapshot()["failed"])
}

func TestHandlePushNoSubscriptionsMarksFailed(t *testing.T) {
	p := newPipeline(t)

	err := p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, repository.StatusFailed, p.sink.last("req-1"))
}

func TestHandlePushAppliesUnreadBadge(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	payload := `{"title":"x","data":{"unread_count": 5}}`
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))

	count, err := p.unread.GetUnread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestHandlePushWithoutCountBumpsBadge(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"x"}`)))
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", `{"title":"y"}`)))

	count, err := p.unread.GetUnread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "each countless push advances the badge by one")

	// An explicit count overrides whatever accumulated.
	payload := `{"title":"z","data":{"unread_count": 1}}`
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))
	count, err = p.unread.GetUnread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestHandlePushCancelledContext(t *testing.T) {
	p := newPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.handler.HandlePush(ctx, envelope("u1", `{"title":"x"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHandlePushChatScenario(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")
	payload := `{"notification":{"title":"New message","body":"Hello"},"data":{"type":"chat"}}`

	// Nobody focused: the system notification goes out with the chat tag.
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))
	require.Len(t, p.sender.sent, 1)
	n := p.sender.sent[0].notification
	assert.Equal(t, "New message", n.Title)
	assert.Equal(t, "Hello", n.Body)
	assert.Equal(t, "chat", n.Tag)

	// A focused client: forwarded in-app instead, no new system notification.
	p.addSession(t, "u1", "s1", true)
	require.NoError(t, p.handler.HandlePush(context.Background(), envelope("u1", payload)))
	assert.Len(t, p.sender.sent, 1, "no additional web push")
	msgs := p.drain(t, "s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MsgPushReceived, msgs[0].Type)
}

func TestAnnounceActivationReachesAllSessions(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", false)
	p.addSession(t, "u2", "s2", true)

	p.handler.AnnounceActivation(context.Background())

	for _, id := range []string{"s1", "s2"} {
		msgs := p.drain(t, id)
		require.Len(t, msgs, 1, "session %s", id)
		assert.Equal(t, models.MsgSWActivated, msgs[0].Type)
	}
}

func TestSendTestPush(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	require.NoError(t, p.handler.SendTestPush(context.Background(), "u1"))

	require.Len(t, p.sender.sent, 1)
	n := p.sender.sent[0].notification
	assert.Equal(t, "テスト通知", n.Title)
	assert.Contains(t, n.Body, "プッシュ通知が動作しています")
	assert.Equal(t, "test", n.Tag)
}
