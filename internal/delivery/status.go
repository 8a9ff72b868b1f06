package delivery

import (
	"context"
	"log/slog"

	"github.com/sousei-dev/push-service/internal/repository"
)

// StatusSink records per-request delivery outcomes.
type StatusSink interface {
	UpdateStatus(ctx context.Context, requestID, status, detail string) error
}

// StatusUpdater wraps a StatusSink so a broken status store can never
// fail a push event; failures are logged and dropped.
type StatusUpdater struct {
	sink   StatusSink
	logger *slog.Logger
}

func NewStatusUpdater(sink StatusSink, logger *slog.Logger) *StatusUpdater {
	return &StatusUpdater{sink: sink, logger: logger}
}

func (s *StatusUpdater) MarkProcessing(ctx context.Context, requestID string) {
	s.mark(ctx, requestID, repository.StatusProcessing, "")
}

func (s *StatusUpdater) MarkDelivered(ctx context.Context, requestID string) {
	s.mark(ctx, requestID, repository.StatusDelivered, "")
}

func (s *StatusUpdater) MarkSuppressed(ctx context.Context, requestID string) {
	s.mark(ctx, requestID, repository.StatusSuppressed, "focused client")
}

func (s *StatusUpdater) MarkFailed(ctx context.Context, requestID, detail string) {
	s.mark(ctx, requestID, repository.StatusFailed, detail)
}

func (s *StatusUpdater) mark(ctx context.Context, requestID, status, detail string) {
	if s == nil || s.sink == nil || requestID == "" {
		return
	}
	if err := s.sink.UpdateStatus(ctx, requestID, status, detail); err != nil {
		s.logger.Error("failed to update delivery status",
			slog.String("request_id", requestID),
			slog.String("status", status),
			slog.Any("error", err))
	}
}
