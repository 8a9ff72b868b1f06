package delivery

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/models"
)

// ClickResolution tells the clicking client what to do after a
// notification interaction: the notification is always closed, then
// either an existing session is focused or a new window is opened.
type ClickResolution struct {
	Close          bool   `json:"close"`
	FocusSessionID string `json:"focus_session_id,omitempty"`
	OpenWindow     string `json:"open_window,omitempty"`
}

// HandleClientMessage dispatches one page-originated protocol message.
// Unknown types are logged and ignored; they are not an error. The
// returned resolution is non-nil only for notification clicks.
func (h *Handler) HandleClientMessage(ctx context.Context, userID string, msg models.ClientMessage) (*ClickResolution, error) {
	switch msg.Type {
	case models.MsgShowNotification:
		return nil, h.showOnRequest(ctx, userID, msg.Data)

	case models.MsgCloseNotification:
		tag, _ := msg.Data["tag"].(string)
		return nil, h.registry.Broadcast(ctx, userID, models.ClientMessage{
			Type: models.MsgCloseNotificationForward,
			Data: map[string]any{"tag": tag},
		})

	case models.MsgCloseAllNotifications:
		return nil, h.registry.Broadcast(ctx, userID, models.ClientMessage{
			Type: models.MsgCloseAllNotifications,
		})

	case models.MsgTestPush:
		return nil, h.SendTestPush(ctx, userID)

	case models.MsgNotificationClick:
		return h.resolveClick(ctx, userID, msg.Data)

	default:
		h.logger.Info("ignoring unknown client message type",
			slog.String("type", msg.Type), slog.String("user_id", userID))
		return nil, nil
	}
}

// showOnRequest displays a page-initiated notification by sending it
// through Web Push to the user's own devices. The payload goes through
// the same normalization so missing fields get the usual defaults.
func (h *Handler) showOnRequest(ctx context.Context, userID string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	h.deliverWebPush(ctx, "", userID, Normalize(raw))
	return nil
}

// resolveClick implements the notification click behavior: close always,
// then focus an open session when one exists (forwarding a navigation
// hint for hospitalization notifications), otherwise open the app root.
func (h *Handler) resolveClick(ctx context.Context, userID string, data map[string]any) (*ClickResolution, error) {
	res := &ClickResolution{Close: true}

	if action, _ := data["action"].(string); action == models.ActionClose {
		return res, nil
	}

	sessions, err := h.registry.Sessions(ctx, userID)
	if err != nil {
		h.logger.Warn("failed to enumerate sessions on click", slog.Any("error", err))
		sessions = nil
	}
	if len(sessions) == 0 {
		res.OpenWindow = h.rootURL
		return res, nil
	}

	target := sessions[0]
	if focused, ok := clients.FindFocused(sessions); ok {
		target = focused
	}
	res.FocusSessionID = target.ID

	if clickType(data) == models.TypeHospitalization {
		hint := models.ClientMessage{
			Type: models.MsgNavigateHospitalization,
			Data: map[string]any{"path": "/elderly-hospitalization"},
		}
		if err := h.registry.Post(ctx, target.ID, hint); err != nil {
			h.logger.Warn("failed to post navigation hint",
				slog.String("session_id", target.ID), slog.Any("error", err))
		}
	}
	return res, nil
}

func clickType(data map[string]any) string {
	nested, ok := data["data"].(map[string]any)
	if !ok {
		return ""
	}
	t, _ := nested["type"].(string)
	return t
}
