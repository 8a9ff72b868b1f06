package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/sousei-dev/push-service/internal/delivery"
	"github.com/sousei-dev/push-service/internal/models"
)

// PushConsumer feeds queued push envelopes into the delivery pipeline.
// The pipeline settles every push itself; the only nacks here are for
// envelopes that cannot even be decoded.
type PushConsumer struct {
	base    *BaseConsumer
	handler *delivery.Handler
	logger  *slog.Logger
}

func NewPushConsumer(base *BaseConsumer, handler *delivery.Handler, logger *slog.Logger) *PushConsumer {
	return &PushConsumer{
		base:    base,
		handler: handler,
		logger:  logger,
	}
}

func (p *PushConsumer) Start(ctx context.Context) error {
	return p.base.Start(ctx, p.handleDelivery)
}

func (p *PushConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var envelope models.PushEnvelope
	if err := json.Unmarshal(msg.Body, &envelope); err != nil {
		p.logger.Error("failed to unmarshal envelope", slog.Any("error", err))
		_ = msg.Reject(false)
		return err
	}

	if err := p.handler.HandlePush(ctx, &envelope); err != nil {
		// Only context cancellation reaches here; requeue so another
		// instance picks the envelope up.
		p.logger.Warn("push handling interrupted, message requeued",
			slog.String("request_id", envelope.RequestID), slog.Any("error", err))
		_ = msg.Nack(false, true)
		return err
	}

	return msg.Ack(false)
}
