package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"daemonpanel/config"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	log        zerolog.Logger
	router     *gin.Engine
	handlers   *Handlers
	auth       *AuthService
	limiter    *RateLimiter
	httpServer *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, log zerolog.Logger, panel ServicePanel) *Server {
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	auth := NewAuthService(cfg.APIKey, cfg.JWTSecret)
	limiter := NewRateLimiter(cfg.RateLimitRPS)
	handlers := NewHandlers(cfg, log, panel, auth)

	s := &Server{
		cfg:      cfg,
		log:      log,
		router:   router,
		handlers: handlers,
		auth:     auth,
		limiter:  limiter,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(RecoveryMiddleware(s.log))
	s.router.Use(LoggerMiddleware(s.log))
	s.router.Use(CORSMiddleware(s.cfg.AllowedOrigins))
	s.router.Use(RateLimitMiddleware(s.limiter))
}

func (s *Server) setupRoutes() {
	// Health check (no auth)
	s.router.GET("/healthz", s.handlers.HealthCheck)

	// Hypermedia fragments for the front end
	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/services")
	})
	s.router.GET("/services", s.handlers.ServicesPage)
	s.router.GET("/service/:id", s.handlers.ServiceDetail)

	// JSON API; auth only when a key is configured
	api := s.router.Group("/api")
	if s.cfg.AuthEnabled() {
		s.router.POST("/api/session", s.handlers.CreateSession)
		api.Use(AuthMiddleware(s.auth))
	}
	{
		api.GET("/info", s.handlers.GetInfo)
		api.GET("/services", s.handlers.ListServices)
		api.GET("/services/:id", s.handlers.GetService)
		api.GET("/services/:id/logs", s.handlers.GetServiceLogs)
		api.POST("/services/:id/:action", s.handlers.ServiceAction)
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.log.Info().Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("forced shutdown")
		}
	}()

	s.log.Info().Str("addr", s.cfg.Addr).Bool("auth", s.cfg.AuthEnabled()).Msg("starting daemonpanel")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.log.Info().Msg("server stopped")
	return nil
}

// Router returns the Gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
