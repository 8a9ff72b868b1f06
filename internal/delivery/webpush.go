package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/sousei-dev/push-service/internal/models"
)

// ErrSubscriptionGone signals that the push service no longer recognizes
// the endpoint. The subscription is dead and must be pruned, not retried.
var ErrSubscriptionGone = errors.New("webpush: subscription gone")

// Sender delivers one normalized notification to one subscription.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, n models.Notification) error
}

// WebPushSender sends notifications through the Web Push protocol with
// VAPID authentication.
type WebPushSender struct {
	subscriber string
	publicKey  string
	privateKey string
	ttl        int
	client     *http.Client
	logger     *slog.Logger
}

func NewWebPushSender(subscriber, publicKey, privateKey string, ttl int, timeout time.Duration, logger *slog.Logger) *WebPushSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if ttl <= 0 {
		ttl = 24 * 60 * 60
	}
	return &WebPushSender{
		subscriber: subscriber,
		publicKey:  publicKey,
		privateKey: privateKey,
		ttl:        ttl,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, n models.Notification) error {
	payload, err := encodeWirePayload(n)
	if err != nil {
		return fmt.Errorf("webpush: encode payload: %w", err)
	}

	urgency := webpush.UrgencyNormal
	if n.RequireInteraction {
		urgency = webpush.UrgencyHigh
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
		Topic:           n.Tag,
		Urgency:         urgency,
	})
	if err != nil {
		return fmt.Errorf("webpush: send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webpush: push service returned %d: %s", resp.StatusCode, body)
	}
	return nil
}

// encodeWirePayload serializes the notification into the JSON shape the
// browser worker displays directly.
func encodeWirePayload(n models.Notification) ([]byte, error) {
	return json.Marshal(n)
}
