// Package subscription bridges the page's "enable notifications" intent
// to a stored push subscription. All business failures resolve to tagged
// results so the UI can render a message; only infrastructure errors
// surface as errors.
package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/sousei-dev/push-service/internal/models"
	"github.com/sousei-dev/push-service/pkg/b64url"
)

// Store persists push subscriptions.
type Store interface {
	Upsert(ctx context.Context, sub models.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, endpoint string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

// Reason is a machine-readable cause attached to a subscribe result so
// callers can distinguish failure modes without parsing messages.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonUnsupported        Reason = "unsupported"
	ReasonVAPIDMissing       Reason = "vapid-missing"
	ReasonPermissionRequired Reason = "permission-required"
	ReasonGestureRequired    Reason = "gesture-required"
	ReasonInvalidKeys        Reason = "invalid-keys"
	ReasonStoreFailed        Reason = "store-failed"
)

// Result is the outcome of a subscribe attempt. Never delivered as a Go
// error: every path resolves to a tagged value.
type Result struct {
	OK      bool   `json:"success"`
	Reason  Reason `json:"reason"`
	Message string `json:"message,omitempty"`
}

// Expected sizes of the decoded key material: an uncompressed P-256
// public point and the 16-byte auth secret.
const (
	p256dhLen = 65
	authLen   = 16
)

type Service struct {
	store           Store
	vapidConfigured bool
	logger          *slog.Logger
}

func NewService(store Store, vapidConfigured bool, logger *slog.Logger) *Service {
	return &Service{store: store, vapidConfigured: vapidConfigured, logger: logger}
}

// Subscribe validates and stores a subscription for the user. Idempotent:
// re-subscribing with the same endpoint re-syncs the stored record rather
// than creating a duplicate.
func (s *Service) Subscribe(ctx context.Context, userID string, payload models.SubscriptionPayload, report *models.SupportReport) Result {
	if report != nil && (!report.ServiceWorker || !report.PushManager) {
		return Result{Reason: ReasonUnsupported, Message: "このブラウザはプッシュ通知に対応していません"}
	}
	if !s.vapidConfigured {
		return Result{Reason: ReasonVAPIDMissing, Message: "VAPIDキーが設定されていません"}
	}
	if report != nil {
		switch report.Permission {
		case "denied":
			return Result{Reason: ReasonPermissionRequired, Message: "通知の許可が必要です"}
		case "default":
			if report.GestureBlocked {
				return Result{Reason: ReasonGestureRequired,
					Message: "通知の許可はクリックなどのユーザー操作からのみリクエストできます"}
			}
			return Result{Reason: ReasonPermissionRequired, Message: "通知の許可が必要です"}
		}
	}

	record, ok := s.buildRecord(userID, payload, report)
	if !ok {
		return Result{Reason: ReasonInvalidKeys, Message: "購読キーが不正です"}
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		s.logger.Error("failed to store subscription",
			slog.String("user_id", userID), slog.Any("error", err))
		return Result{Reason: ReasonStoreFailed, Message: "購読情報の保存に失敗しました"}
	}

	s.logger.Info("subscription saved",
		slog.String("user_id", userID),
		slog.String("endpoint", truncate(payload.Endpoint, 64)))
	return Result{OK: true, Reason: ReasonOK}
}

// buildRecord validates the key material and produces the storable
// record. Keys arrive in either base64 alphabet with or without padding
// and are stored in the canonical URL-safe unpadded form.
func (s *Service) buildRecord(userID string, payload models.SubscriptionPayload, report *models.SupportReport) (models.PushSubscription, bool) {
	if payload.Endpoint == "" {
		return models.PushSubscription{}, false
	}

	p256dh, err := b64url.Decode(payload.Keys.P256dh)
	if err != nil || len(p256dh) != p256dhLen {
		return models.PushSubscription{}, false
	}
	auth, err := b64url.Decode(payload.Keys.Auth)
	if err != nil || len(auth) != authLen {
		return models.PushSubscription{}, false
	}

	record := models.PushSubscription{
		Endpoint: payload.Endpoint,
		UserID:   userID,
		P256dh:   b64url.Encode(p256dh),
		Auth:     b64url.Encode(auth),
	}
	if payload.ExpirationTime != nil {
		t := time.UnixMilli(*payload.ExpirationTime)
		record.ExpirationTime = &t
	}
	if report != nil {
		record.UserAgent = report.UserAgent
	}
	return record, true
}

// Unsubscribe removes the subscription and reports whether one existed.
// Calling with an unknown endpoint returns a benign false.
func (s *Service) Unsubscribe(ctx context.Context, endpoint string) (bool, error) {
	if endpoint == "" {
		return false, nil
	}
	existed, err := s.store.DeleteByEndpoint(ctx, endpoint)
	if err != nil {
		return false, err
	}
	if existed {
		s.logger.Info("subscription removed", slog.String("endpoint", truncate(endpoint, 64)))
	}
	return existed, nil
}

// Status reports whether the user currently holds any subscription.
// Store failures degrade to "not subscribed".
func (s *Service) Status(ctx context.Context, userID string) bool {
	count, err := s.store.CountByUser(ctx, userID)
	if err != nil {
		s.logger.Warn("subscription status lookup failed",
			slog.String("user_id", userID), slog.Any("error", err))
		return false
	}
	return count > 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
