package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/models"
	"github.com/sousei-dev/push-service/pkg/metrics"
	"github.com/sousei-dev/push-service/pkg/retry"
)

// SubscriptionSource provides the stored subscriptions of a user and lets
// the pipeline prune dead ones.
type SubscriptionSource interface {
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	DeleteByEndpoint(ctx context.Context, endpoint string) (bool, error)
}

// UnreadStore backs the app icon badge counter.
type UnreadStore interface {
	SetUnread(ctx context.Context, userID string, count int) error
	IncrementUnread(ctx context.Context, userID string) (int, error)
}

// EndpointSuppressor remembers endpoints the push service declared gone.
type EndpointSuppressor interface {
	IsEndpointSuppressed(ctx context.Context, endpoint string) (bool, error)
	SuppressEndpoint(ctx context.Context, endpoint string, ttl time.Duration) error
}

// Handler is the push delivery pipeline. Each push event is handled as a
// self-contained unit: decode, normalize, decide between in-app forward
// and Web Push, send, record. Every stage is contained so a failure in
// one never prevents the others, and HandlePush settles successfully even
// on partial failure.
type Handler struct {
	registry   clients.Registry
	subs       SubscriptionSource
	sender     Sender
	status     *StatusUpdater
	unread     UnreadStore
	suppressor EndpointSuppressor
	metrics    *metrics.Metrics
	logger     *slog.Logger
	retryCfg   retry.Config
	rootURL    string
}

func NewHandler(
	registry clients.Registry,
	subs SubscriptionSource,
	sender Sender,
	status *StatusUpdater,
	unread UnreadStore,
	suppressor EndpointSuppressor,
	m *metrics.Metrics,
	logger *slog.Logger,
	retryCfg retry.Config,
	rootURL string,
) *Handler {
	if rootURL == "" {
		rootURL = "/"
	}
	return &Handler{
		registry:   registry,
		subs:       subs,
		sender:     sender,
		status:     status,
		unread:     unread,
		suppressor: suppressor,
		metrics:    m,
		logger:     logger,
		retryCfg:   retryCfg,
		rootURL:    rootURL,
	}
}

// HandlePush processes one inbound push envelope. The returned error is
// non-nil only when the context is cancelled; delivery failures are
// logged and recorded in the status store instead, because an unsettled
// push event would be treated as a hard failure upstream.
func (h *Handler) HandlePush(ctx context.Context, env *models.PushEnvelope) error {
	h.metrics.IncConsumed()

	n := Normalize(env.Payload)
	h.status.MarkProcessing(ctx, env.RequestID)

	h.applyBadge(ctx, env.UserID, &n)

	sessions, err := h.registry.Sessions(ctx, env.UserID)
	if err != nil {
		// A broken registry must not block delivery; treat as no open clients.
		h.logger.Warn("failed to enumerate client sessions",
			slog.String("user_id", env.UserID), slog.Any("error", err))
		sessions = nil
	}

	msg := models.ClientMessage{
		Type: forwardType(&n),
		Data: map[string]any{"notification": n},
	}

	if focused, ok := clients.FindFocused(sessions); ok {
		// The user is already looking at the app; forward in-app and
		// suppress the system notification for all clients.
		if err := h.registry.Post(ctx, focused.ID, msg); err != nil {
			h.logger.Warn("failed to forward to focused session",
				slog.String("session_id", focused.ID), slog.Any("error", err))
		} else {
			h.metrics.IncForwarded()
		}
		h.metrics.IncSuppressed()
		h.status.MarkSuppressed(ctx, env.RequestID)
		return ctx.Err()
	}

	for _, s := range sessions {
		if err := h.registry.Post(ctx, s.ID, msg); err != nil {
			h.logger.Warn("failed to forward to session",
				slog.String("session_id", s.ID), slog.Any("error", err))
			continue
		}
		h.metrics.IncForwarded()
	}

	h.deliverWebPush(ctx, env.RequestID, env.UserID, n)
	return ctx.Err()
}

// deliverWebPush sends the notification to every stored subscription of
// the user, pruning the ones the push service reports gone.
func (h *Handler) deliverWebPush(ctx context.Context, requestID, userID string, n models.Notification) {
	subs, err := h.subs.ListByUser(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load subscriptions",
			slog.String("user_id", userID), slog.Any("error", err))
		h.metrics.IncFailed()
		h.status.MarkFailed(ctx, requestID, err.Error())
		return
	}
	if len(subs) == 0 {
		h.status.MarkFailed(ctx, requestID, "no subscriptions for user")
		return
	}

	var sent, failed int
	for _, sub := range subs {
		if h.isSuppressed(ctx, sub.Endpoint) {
			continue
		}

		err := retry.Do(ctx, h.retryCfg, func(ctx context.Context) error {
			sendErr := h.sender.Send(ctx, sub, n)
			if errors.Is(sendErr, ErrSubscriptionGone) {
				return fmt.Errorf("%w: %w", retry.ErrAbort, sendErr)
			}
			return sendErr
		})
		switch {
		case err == nil:
			sent++
			h.metrics.IncDisplayed()
		case errors.Is(err, ErrSubscriptionGone):
			h.prune(ctx, sub.Endpoint)
		default:
			failed++
			h.metrics.IncFailed()
			h.logger.Error("webpush send failed",
				slog.String("request_id", requestID),
				slog.String("endpoint", truncate(sub.Endpoint, 64)),
				slog.Any("error", err))
		}
	}

	switch {
	case sent > 0 && failed == 0:
		h.status.MarkDelivered(ctx, requestID)
	case sent > 0:
		h.status.MarkFailed(ctx, requestID, fmt.Sprintf("partial: %d sent, %d failed", sent, failed))
	default:
		h.status.MarkFailed(ctx, requestID, "all sends failed or endpoints gone")
	}
}

func (h *Handler) prune(ctx context.Context, endpoint string) {
	h.metrics.IncPruned()
	h.logger.Info("pruning dead subscription", slog.String("endpoint", truncate(endpoint, 64)))
	if _, err := h.subs.DeleteByEndpoint(ctx, endpoint); err != nil {
		h.logger.Error("failed to delete dead subscription", slog.Any("error", err))
	}
	if h.suppressor != nil {
		if err := h.suppressor.SuppressEndpoint(ctx, endpoint, 0); err != nil {
			h.logger.Warn("failed to suppress endpoint", slog.Any("error", err))
		}
	}
}

func (h *Handler) isSuppressed(ctx context.Context, endpoint string) bool {
	if h.suppressor == nil {
		return false
	}
	suppressed, err := h.suppressor.IsEndpointSuppressed(ctx, endpoint)
	if err != nil {
		h.logger.Warn("suppression lookup failed", slog.Any("error", err))
		return false
	}
	return suppressed
}

// applyBadge keeps the badge counter in step with the incoming push: a
// count riding the payload is authoritative, otherwise the counter
// advances by one per notification. Failure is non-fatal.
func (h *Handler) applyBadge(ctx context.Context, userID string, n *models.Notification) {
	if h.unread == nil {
		return
	}
	if count, ok := unreadCount(n); ok {
		if err := h.unread.SetUnread(ctx, userID, count); err != nil {
			h.logger.Warn("failed to set unread badge",
				slog.String("user_id", userID), slog.Any("error", err))
		}
		return
	}
	if _, err := h.unread.IncrementUnread(ctx, userID); err != nil {
		h.logger.Warn("failed to bump unread badge",
			slog.String("user_id", userID), slog.Any("error", err))
	}
}

// AnnounceActivation broadcasts the activation message every open client
// listens for after the worker restarts.
func (h *Handler) AnnounceActivation(ctx context.Context) {
	msg := models.ClientMessage{
		Type: models.MsgSWActivated,
		Data: map[string]any{"message": "新しいバージョンが有効になりました"},
	}
	if err := h.registry.BroadcastAll(ctx, msg); err != nil {
		h.logger.Warn("failed to announce activation", slog.Any("error", err))
	}
}

// SendTestPush pushes a fixed test notification through the normal
// pipeline for the requesting user.
func (h *Handler) SendTestPush(ctx context.Context, userID string) error {
	body := RenderTemplate("{{app}}のプッシュ通知が動作しています", map[string]any{"app": "SOUSEI"})
	payload, err := json.Marshal(map[string]any{
		"title": "テスト通知",
		"body":  body,
		"data":  map[string]any{"type": "test"},
	})
	if err != nil {
		return err
	}
	return h.HandlePush(ctx, &models.PushEnvelope{
		RequestID: "test-" + uuid.NewString(),
		UserID:    userID,
		CreatedAt: time.Now(),
		Payload:   payload,
	})
}

func forwardType(n *models.Notification) string {
	if n.IsHospitalization() {
		return models.MsgHospitalization
	}
	return models.MsgPushReceived
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
