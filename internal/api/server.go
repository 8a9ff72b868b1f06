package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sousei-dev/push-service/internal/access"
	"github.com/sousei-dev/push-service/internal/clients"
	"github.com/sousei-dev/push-service/internal/delivery"
	"github.com/sousei-dev/push-service/internal/subscription"
	"github.com/sousei-dev/push-service/pkg/metrics"
)

// UnreadCounter exposes the badge counter to the unread-count endpoints:
// read for the badge poll, clear when the user catches up.
type UnreadCounter interface {
	GetUnread(ctx context.Context, userID string) (int, error)
	ClearUnread(ctx context.Context, userID string) error
}

// Server is the HTTP surface of the push service: subscription
// management, client session coordination, the access evaluator and
// operational endpoints.
type Server struct {
	router   *gin.Engine
	subs     *subscription.Service
	handler  *delivery.Handler
	registry clients.Registry
	unread   UnreadCounter
	engine   *access.Engine
	metrics  *metrics.Metrics
	logger   *slog.Logger

	vapidPublicKey string
	jwtSecret      string
	started        time.Time
}

func NewServer(
	subs *subscription.Service,
	handler *delivery.Handler,
	registry clients.Registry,
	unread UnreadCounter,
	engine *access.Engine,
	m *metrics.Metrics,
	logger *slog.Logger,
	vapidPublicKey, jwtSecret string,
) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:         router,
		subs:           subs,
		handler:        handler,
		registry:       registry,
		unread:         unread,
		engine:         engine,
		metrics:        m,
		logger:         logger,
		vapidPublicKey: vapidPublicKey,
		jwtSecret:      jwtSecret,
		started:        time.Now(),
	}
	s.setupRoutes(JWTAuth(jwtSecret))
	return s
}

// Handler exposes the router, mainly for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts the HTTP server on the given port.
func (s *Server) Run(port string) error {
	return s.router.Run(":" + port)
}

func (s *Server) setupRoutes(auth gin.HandlerFunc) {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "push service healthy",
			"meta": gin.H{
				"uptime_seconds": int(time.Since(s.started).Seconds()),
				"timestamp":      time.Now().UTC(),
			},
		})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/push/vapid-public-key", s.handleVAPIDKey)

	authed := s.router.Group("/", auth)
	{
		push := authed.Group("/push")
		{
			push.POST("/save-subscription", s.handleSaveSubscription)
			push.POST("/remove-subscription", s.handleRemoveSubscription)
			push.GET("/status", s.handleSubscriptionStatus)
			push.POST("/support-report", s.handleSupportReport)
		}

		sessions := authed.Group("/clients")
		{
			sessions.POST("/register", s.handleRegisterClient)
			sessions.POST("/:id/heartbeat", s.handleHeartbeat)
			sessions.POST("/:id/focus", s.handleFocus)
			sessions.DELETE("/:id", s.handleDeregisterClient)
			sessions.POST("/:id/message", s.handleClientMessage)
			sessions.GET("/:id/messages", s.handlePollMessages)
		}

		authed.GET("/notifications/unread-count", s.handleUnreadCount)
		authed.DELETE("/notifications/unread-count", s.handleClearUnread)
		authed.POST("/access/check", s.handleAccessCheck)
		authed.POST("/internal/push", s.handleDirectPush)
	}
}
