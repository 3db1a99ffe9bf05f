package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor-match/config"
	"tutor-match/internal/handler"
	"tutor-match/internal/middleware"
	"tutor-match/internal/transport/httpdto"
	"tutor-match/internal/websocket"
	"tutor-match/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger

	health     []namedCheck
	onShutdown []func(ctx context.Context)
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Swipes        *handler.SwipeHandler
	Matches       *handler.MatchHandler
	Conversations *handler.ConversationHandler
	Messages      *handler.MessageHandler
	Realtime      *websocket.Handler
}

// HealthCheck reports a dependency problem as a non-nil error.
type HealthCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheck
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	if l == nil {
		l = logger.Nop()
	}

	engine := gin.New()

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// AddHealthCheck registers a dependency checked by GET /health.
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	s.health = append(s.health, namedCheck{name: name, check: check})
}

// OnShutdown registers fn to run after the HTTP server has drained.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

// SetupRoutes mounts the API. limiter may be nil, in which case no rate limiting is applied.
func (s *Server) SetupRoutes(handlers *Handlers, auth middleware.TokenVerifier, limiter middleware.Limiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})
	s.engine.GET("/health", s.healthHandler)

	swipeLimit := []gin.HandlerFunc{}
	messageLimit := []gin.HandlerFunc{}
	if limiter != nil {
		swipeLimit = append(swipeLimit, middleware.SwipeRateLimitMiddleware(limiter))
		messageLimit = append(messageLimit, middleware.MessageRateLimitMiddleware(limiter))
	}

	v1 := s.engine.Group("/v1")
	if handlers.Realtime != nil {
		// Browsers cannot set headers on upgrade requests; the handler reads ?token= itself.
		v1.GET("/ws", handlers.Realtime.Connect)
	}

	api := v1.Group("", middleware.AuthMiddleware(auth))
	api.POST("/swipes", append(swipeLimit, handlers.Swipes.Swipe)...)

	matches := api.Group("/matches")
	{
		matches.POST("/accept", handlers.Matches.Accept)
		matches.GET("", handlers.Matches.List)
		matches.GET("/count", handlers.Matches.Count)
		matches.GET("/with/:user_id", handlers.Matches.WithUser)
		matches.GET("/:id", handlers.Matches.GetByID)
		matches.POST("/:id/deactivate", handlers.Matches.Deactivate)
		matches.POST("/:id/block", handlers.Matches.Block)
		matches.POST("/:id/decline", handlers.Matches.Decline)
		matches.POST("/:id/conversation", handlers.Matches.OpenConversation)
	}

	conversations := api.Group("/conversations")
	{
		conversations.GET("", handlers.Conversations.List)
		conversations.GET("/:id/messages", handlers.Messages.List)
		conversations.GET("/:id/messages/search", handlers.Messages.Search)
		conversations.POST("/:id/messages", append(messageLimit, handlers.Messages.Send)...)
		conversations.POST("/:id/read", handlers.Messages.MarkRead)
		conversations.GET("/:id/unread", handlers.Messages.UnreadCount)
	}

	api.DELETE("/messages/:id", handlers.Messages.Delete)
	api.GET("/unread", handlers.Messages.UnreadSummary)
}

func (s *Server) healthHandler(c *gin.Context) {
	status := gin.H{}
	healthy := true
	for _, h := range s.health {
		if err := h.check(c.Request.Context()); err != nil {
			status[h.name] = err.Error()
			healthy = false
			continue
		}
		status[h.name] = "ok"
	}
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Success: false, Data: status, Error: "unhealthy", Code: "UNHEALTHY"})
		return
	}
	status["status"] = "healthy"
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	s.logger.Infof("Server is running on :%s", s.config.AppPort)

	<-quit

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
	}

	for _, fn := range s.onShutdown {
		fn(ctx)
	}

	if err == nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return err
}
