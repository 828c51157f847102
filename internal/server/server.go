package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wejrox/dogbot/internal/adjudication"
	"github.com/wejrox/dogbot/internal/chat"
	"github.com/wejrox/dogbot/internal/config"
	"github.com/wejrox/dogbot/internal/handlers"
	"github.com/wejrox/dogbot/internal/middleware"
)

// HealthChecker reports the state of the storage backend.
type HealthChecker interface {
	Health() map[string]string
}

type Server struct {
	cfg     config.Config
	health  HealthChecker
	handler *handlers.Handler
}

// Deps are the components the HTTP surface is built on.
type Deps struct {
	Service *adjudication.Service
	Board   *chat.Board
	Health  HealthChecker
	Logger  *slog.Logger
}

// NewServer creates and configures a new server. Adjudications started by
// requests run under ctx rather than the request context.
func NewServer(ctx context.Context, cfg config.Config, deps Deps) *http.Server {
	// Create unified handler
	handler := handlers.NewHandler(ctx, deps.Service, deps.Board, cfg, deps.Logger)

	newServer := &Server{
		cfg:     cfg,
		health:  deps.Health,
		handler: handler,
	}

	// Configure Gin router
	router := newServer.RegisterRoutes()

	// Create HTTP server
	return &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	r := gin.Default()

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", s.healthHandler)

	api := r.Group("/api")
	{
		// Gateway token exchange (public)
		api.POST("/token", s.handler.Auth.IssueToken)

		// Protected routes (authentication required)
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware([]byte(s.cfg.JWTSecret)), s.handler.RememberCaller)
		{
			protected.GET("/me", s.handler.Auth.GetMe)

			// Dog acts
			protected.POST("/guilds/:guildID/acts", s.handler.Act.ReportAct)
			protected.GET("/acts/:actID", s.handler.Act.GetAct)
			protected.POST("/acts/:actID/revote", s.handler.Act.RequestRevote)
			protected.POST("/acts/:actID/resume", s.handler.Act.ResumeAct)

			// Voting messages
			protected.GET("/messages/:ref", s.handler.Act.GetMessage)
			protected.POST("/messages/:ref/votes", s.handler.Act.CastVote)

			// Members
			protected.GET("/guilds/:guildID/members/:memberID/history", s.handler.Member.GetHistory)
			protected.GET("/guilds/:guildID/dogs", s.handler.Member.GetDogs)
			protected.PUT("/members/:memberID", s.handler.Member.UpdateMember)
		}
	}

	return r
}

func (s *Server) healthHandler(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	stats := s.health.Health()
	if stats["status"] != "up" {
		c.JSON(http.StatusServiceUnavailable, stats)
		return
	}
	c.JSON(http.StatusOK, stats)
}
