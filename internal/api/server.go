// Package api provides the HTTP server for the bridge.
// It includes the main server struct, routing setup, middleware for CORS and
// authentication, and the OpenAI-compatible handler wiring. The server
// supports hot-reloading of configuration.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/modelbridge/gembridge/internal/api/handlers"
	"github.com/modelbridge/gembridge/internal/api/handlers/openai"
	"github.com/modelbridge/gembridge/internal/api/middleware"
	"github.com/modelbridge/gembridge/internal/config"
	"github.com/modelbridge/gembridge/internal/logging"
)

// Server represents the main API server.
// It encapsulates the Gin engine, HTTP server, handlers, and configuration.
type Server struct {
	// engine is the Gin web framework engine instance.
	engine *gin.Engine

	// server is the underlying HTTP server.
	server *http.Server

	// handlers contains the shared handler state.
	handlers *handlers.BaseHandler

	// chat contains the OpenAI-compatible endpoint handlers.
	chat *openai.ChatAPIHandler
}

// NewServer creates and initializes a new API server instance.
// It sets up the Gin engine, middleware, routes, and handlers.
func NewServer(cfg *config.Config, base *handlers.BaseHandler) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(logging.GinLogrusLogger())
	engine.Use(logging.GinLogrusRecovery())
	middleware.RegisterMetrics()
	engine.Use(middleware.PrometheusMiddleware())

	s := &Server{
		engine:   engine,
		handlers: base,
		chat:     openai.NewChatAPIHandler(base),
	}

	engine.Use(corsMiddleware(base.Config))
	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	return s
}

// setupRoutes configures the API routes for the server.
// It defines the endpoints and associates them with their respective handlers.
func (s *Server) setupRoutes() {
	authMiddleware := middleware.APIKeyAuth(func() []string {
		return s.handlers.Config().APIKeys
	})

	// OpenAI compatible API routes
	v1 := s.engine.Group("/v1")
	v1.Use(authMiddleware)
	{
		v1.GET("/models", s.chat.Models)
		v1.GET("/models/:id", s.chat.ModelByID)
		v1.POST("/chat/completions", s.chat.ChatCompletions)
	}

	// Health check endpoint
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "port": s.handlers.Config().Port})
	})

	// Prometheus metrics endpoint for observability
	s.engine.GET("/metrics", middleware.MetricsHandler())

	// Root-level API routes (mirrors /v1/* for clients that dont add /v1 prefix)
	s.engine.GET("/models", authMiddleware, s.chat.Models)
	s.engine.POST("/chat/completions", authMiddleware, s.chat.ChatCompletions)

	// Root endpoint
	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "GemBridge API Server",
			"endpoints": []string{
				"POST /v1/chat/completions",
				"GET /v1/models",
			},
		})
	})
}

// Handler exposes the underlying HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start begins listening for and serving HTTP requests.
// It blocks until the server is stopped or an error occurs.
func (s *Server) Start() error {
	if s == nil || s.server == nil {
		return fmt.Errorf("failed to start HTTP server: server not initialized")
	}

	log.Debugf("Starting API server on %s", s.server.Addr)
	if errServe := s.server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %v", errServe)
	}

	return nil
}

// Stop gracefully shuts down the API server without interrupting any
// active connections.
func (s *Server) Stop(ctx context.Context) error {
	log.Debug("Stopping API server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %v", err)
	}

	log.Debug("API server stopped")
	return nil
}

// UpdateConfig swaps the active configuration. Handlers and middleware read
// snapshots, so in-flight requests keep the config they started with.
func (s *Server) UpdateConfig(cfg *config.Config) {
	s.handlers.UpdateConfig(cfg)
	if cfg.Debug {
		logging.SetLogLevel("debug")
	} else {
		logging.SetLogLevel("info")
	}
}

// corsMiddleware returns a Gin middleware handler that adds CORS headers
// to every response, allowing cross-origin requests.
func corsMiddleware(getCfg func() *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg := (*config.Config)(nil)
		if getCfg != nil {
			cfg = getCfg()
		}

		origin := strings.TrimSpace(c.GetHeader("Origin"))

		allowOrigins := []string{}
		allowMethods := "GET, POST, PUT, PATCH, DELETE, OPTIONS"
		allowHeaders := "*"
		if cfg != nil {
			allowOrigins = cfg.CORS.AllowOrigins
			if len(cfg.CORS.AllowMethods) > 0 {
				allowMethods = strings.Join(cfg.CORS.AllowMethods, ", ")
			}
			if len(cfg.CORS.AllowHeaders) > 0 {
				allowHeaders = strings.Join(cfg.CORS.AllowHeaders, ", ")
			}
		}

		allowedOrigin := ""
		if origin != "" {
			switch {
			case len(allowOrigins) == 0:
				allowedOrigin = "*"
			case originAllowed(allowOrigins, origin):
				allowedOrigin = origin
			}
		}

		if allowedOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowedOrigin)
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			if allowedOrigin != "*" {
				c.Header("Vary", "Origin")
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func originAllowed(allowOrigins []string, origin string) bool {
	if origin == "" || len(allowOrigins) == 0 {
		return false
	}
	for _, allowed := range allowOrigins {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
