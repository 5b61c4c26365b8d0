package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/teelog/internal/api/http"
	"github.com/GriffinCanCode/teelog/internal/api/middleware"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/config"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/logging"
	"github.com/GriffinCanCode/teelog/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/teelog/internal/ws"
)

const shutdownTimeout = 5 * time.Second

// Server wraps the control API's HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	handlers *apihttp.Handlers
	logger   *logging.Logger
	config   *config.Config
}

// NewServer builds the router. hub may be nil when the live tail is off.
func NewServer(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics, hub *ws.Hub) *Server {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger.Named("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(logger, metrics)
	var tail gin.HandlerFunc
	if hub != nil {
		tail = hub.HandleConnection
	}
	handlers.Register(router, tail)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		router:   router,
		handlers: handlers,
		logger:   logger,
		config:   cfg,
		http: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handlers exposes the handler set so the daemon can install the session
// once it attaches.
func (s *Server) Handlers() *apihttp.Handlers { return s.handlers }

// Router is the underlying gin engine.
func (s *Server) Router() *gin.Engine { return s.router }

// Addr is the configured listen address.
func (s *Server) Addr() string { return s.http.Addr }

// Run listens on the configured address until ctx is canceled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
