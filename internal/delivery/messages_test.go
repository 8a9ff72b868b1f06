package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sousei-dev/push-service/internal/models"
)

func TestHandleClientMessageShowNotification(t *testing.T) {
	p := newPipeline(t)
	p.addSubscription(t, "u1", "https://push.example/ep1")

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgShowNotification,
		Data: map[string]any{"title": "手動通知", "body": "本文"},
	})
	require.NoError(t, err)
	assert.Nil(t, res)

	require.Len(t, p.sender.sent, 1)
	assert.Equal(t, "手動通知", p.sender.sent[0].notification.Title)
}

func TestHandleClientMessageCloseByTag(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", false)
	p.addSession(t, "u1", "s2", true)

	_, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgCloseNotification,
		Data: map[string]any{"tag": "hospitalization"},
	})
	require.NoError(t, err)

	for _, id := range []string{"s1", "s2"} {
		msgs := p.drain(t, id)
		require.Len(t, msgs, 1, "session %s", id)
		assert.Equal(t, models.MsgCloseNotificationForward, msgs[0].Type)
		assert.Equal(t, "hospitalization", msgs[0].Data["tag"])
	}
}

func TestHandleClientMessageCloseAll(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", false)
	p.addSession(t, "u2", "other", false)

	_, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgCloseAllNotifications,
	})
	require.NoError(t, err)

	assert.Len(t, p.drain(t, "s1"), 1)
	assert.Empty(t, p.drain(t, "other"), "close-all is scoped to the requesting user")
}

func TestHandleClientMessageUnknownTypeIgnored(t *testing.T) {
	p := newPipeline(t)

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: "SOMETHING_NEW",
	})
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolveClickCloseAction(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", true)

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgNotificationClick,
		Data: map[string]any{"action": models.ActionClose},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Close)
	assert.Empty(t, res.FocusSessionID)
	assert.Empty(t, res.OpenWindow)
}

func TestResolveClickNoSessionsOpensWindow(t *testing.T) {
	p := newPipeline(t)

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgNotificationClick,
		Data: map[string]any{},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.Close)
	assert.Equal(t, "/", res.OpenWindow)
}

func TestResolveClickPrefersFocusedSession(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s-blur", false)
	p.addSession(t, "u1", "s-focus", true)

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgNotificationClick,
		Data: map[string]any{},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "s-focus", res.FocusSessionID)
	assert.Empty(t, res.OpenWindow)
}

func TestResolveClickHospitalizationNavigates(t *testing.T) {
	p := newPipeline(t)
	p.addSession(t, "u1", "s1", true)

	res, err := p.handler.HandleClientMessage(context.Background(), "u1", models.ClientMessage{
		Type: models.MsgNotificationClick,
		Data: map[string]any{
			"data": map[string]any{"type": models.TypeHospitalization},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "s1", res.FocusSessionID)

	msgs := p.drain(t, "s1")
	require.Len(t, msgs, 1)
	assert.Equal(t, models.MsgNavigateHospitalization, msgs[0].Type)
	assert.Equal(t, "/elderly-hospitalization", msgs[0].Data["path"])
}

func TestRenderTemplate(t *testing.T) {
	out := RenderTemplate("{{name}}さん、{{count}}件の通知があります", map[string]any{
		"name":  "田中",
		"count": 3,
	})
	assert.Equal(t, "田中さん、3件の通知があります", out)

	// unknown keys stay in place
	out = RenderTemplate("hello {{missing}}", map[string]any{})
	assert.Equal(t, "hello {{missing}}", out)
}
