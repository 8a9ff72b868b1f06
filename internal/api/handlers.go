package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/models"
	"github.com/sousei-dev/push-service/internal/subscription"
)

func (s *Server) handleVAPIDKey(c *gin.Context) {
	if s.vapidPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"message": "VAPIDキーが設定されていません",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": s.vapidPublicKey})
}

type saveSubscriptionRequest struct {
	UserID       string                     `json:"userId"`
	Subscription models.SubscriptionPayload `json:"subscription"`
	Report       *models.SupportReport      `json:"report,omitempty"`
}

func (s *Server) handleSaveSubscription(c *gin.Context) {
	var req saveSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = c.GetString(ctxUserID)
	}

	result := s.subs.Subscribe(c.Request.Context(), userID, req.Subscription, req.Report)
	status := http.StatusOK
	if !result.OK {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}

type removeSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
}

func (s *Server) handleRemoveSubscription(c *gin.Context) {
	var req removeSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}

	existed, err := s.subs.Unsubscribe(c.Request.Context(), req.Endpoint)
	if err != nil {
		s.logger.Error("unsubscribe failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "購読解除に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "existed": existed})
}

func (s *Server) handleSubscriptionStatus(c *gin.Context) {
	userID := c.GetString(ctxUserID)
	c.JSON(http.StatusOK, gin.H{
		"subscribed": s.subs.Status(c.Request.Context(), userID),
	})
}

func (s *Server) handleSupportReport(c *gin.Context) {
	var report models.SupportReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}
	c.JSON(http.StatusOK, subscription.DetectSupport(report, s.logger))
}

type registerClientRequest struct {
	Focused   bool   `json:"focused"`
	UserAgent string `json:"userAgent"`
}

func (s *Server) handleRegisterClient(c *gin.Context) {
	var req registerClientRequest
	// An empty body registers an unfocused session.
	_ = c.ShouldBindJSON(&req)

	session := clients.Session{
		ID:           uuid.NewString(),
		UserID:       c.GetString(ctxUserID),
		Focused:      req.Focused,
		UserAgent:    req.UserAgent,
		RegisteredAt: time.Now(),
	}
	if err := s.registry.Register(c.Request.Context(), session); err != nil {
		s.logger.Error("session registration failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"sessionId": session.ID})
}

func (s *Server) handleHeartbeat(c *gin.Context) {
	if err := s.registry.Heartbeat(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type focusRequest struct {
	Focused bool `json:"focused"`
}

func (s *Server) handleFocus(c *gin.Context) {
	var req focusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	if err := s.registry.SetFocus(c.Request.Context(), c.Param("id"), req.Focused); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeregisterClient(c *gin.Context) {
	if err := s.registry.Deregister(c.Request.Context(), c.Param("id")); err != nil {
		s.logger.Warn("session deregistration failed", slog.Any("error", err))
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleClientMessage(c *gin.Context) {
	var msg models.ClientMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}

	resolution, err := s.handler.HandleClientMessage(c.Request.Context(), c.GetString(ctxUserID), msg)
	if err != nil {
		s.logger.Error("client message handling failed",
			slog.String("type", msg.Type), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	if resolution != nil {
		c.JSON(http.StatusOK, resolution)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

// handlePollMessages hands a session its pending worker messages. Pages
// on the in-process registry poll this; on the Redis registry messages
// arrive over pub/sub instead and the poll returns an empty list.
func (s *Server) handlePollMessages(c *gin.Context) {
	msgs, err := s.registry.Drain(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false})
		return
	}
	if msgs == nil {
		msgs = []models.ClientMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	count := 0
	if s.unread != nil {
		var err error
		count, err = s.unread.GetUnread(c.Request.Context(), c.GetString(ctxUserID))
		if err != nil {
			s.logger.Warn("unread count lookup failed", slog.Any("error", err))
			count = 0
		}
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

// handleClearUnread resets the badge counter, called when the user has
// seen their messages.
func (s *Server) handleClearUnread(c *gin.Context) {
	if s.unread != nil {
		if err := s.unread.ClearUnread(c.Request.Context(), c.GetString(ctxUserID)); err != nil {
			s.logger.Error("failed to clear unread counter", slog.Any("error", err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type accessCheckRequest struct {
	Path string `json:"path"`
}

func (s *Server) handleAccessCheck(c *gin.Context) {
	var req accessCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}
	c.JSON(http.StatusOK, s.engine.Check(c.GetString(ctxRole), req.Path))
}

type directPushRequest struct {
	UserID  string         `json:"userId"`
	Payload map[string]any `json:"payload"`
}

// handleDirectPush injects a push through the same pipeline the queue
// feeds; used by backend services that do not publish to RabbitMQ.
func (s *Server) handleDirectPush(c *gin.Context) {
	var req directPushRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}

	envelope, err := models.NewEnvelope(req.UserID, req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "リクエストが不正です"})
		return
	}
	if err := s.handler.HandlePush(c.Request.Context(), envelope); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"success": true, "requestId": envelope.RequestID})
}
