package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/services"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/tasks"
	"github.com/desertthunder/animx/internal/web"
	"github.com/gin-gonic/gin"
)

// ShutdownGrace bounds how long in-flight requests may run after shutdown begins.
const ShutdownGrace = 10 * time.Second

// Handler groups the routes of one API surface.
type Handler interface {
	Register(r gin.IRouter) // Register adds the handler's routes to r
	Routes() []string       // Routes returns the path patterns this handler serves
}

// ProviderStatus reports whether the provider credential is present.
type ProviderStatus interface {
	Configured() bool
}

// Deps are the collaborators the HTTP surface delegates to.
type Deps struct {
	Generator tasks.Generator
	Provider  ProviderStatus
	Auth      *services.AuthService // nil disables /api/auth
	Site      *web.Site             // nil disables the static front end
	Logger    *log.Logger
}

// Server is the gin-based HTTP front of the generation engine.
type Server struct {
	cfg    shared.Config
	engine *gin.Engine
	http   *http.Server
	logger *log.Logger
	routes []string
}

// New builds the engine, middleware chain and handlers.
func New(cfg shared.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}
	logger := shared.WithLogger(deps.Logger, "component", "server")

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(
		Recovery(logger),
		RequestID(),
		AccessLog(logger),
		CORS(),
		BodyLimit(int64(cfg.Server.MaxBodyMB)<<20),
	)
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorBody("Method not allowed"))
	})

	s := &Server{cfg: cfg, engine: engine, logger: logger}

	limiter := NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	s.Handle(&GenerationHandler{
		gen:      deps.Generator,
		provider: cfg.Provider,
		limiter:  limiter,
		logger:   logger,
	})
	s.Handle(&AuthHandler{
		auth:       deps.Auth,
		adminToken: cfg.Auth.AdminToken,
		logger:     logger,
	})
	s.Handle(&HealthHandler{provider: deps.Provider})

	if deps.Site != nil {
		engine.NoRoute(deps.Site.Serve)
		s.routes = append(s.routes, "/ (static)")
	} else {
		engine.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, errorBody("Not found"))
		})
	}

	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handle registers h on the engine.
func (s *Server) Handle(h Handler) {
	h.Register(s.engine)
	s.routes = append(s.routes, h.Routes()...)
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Routes lists every registered path.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	s.logger.Info("listening", "addr", ln.Addr().String(), "routes", len(s.routes))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "grace", ShutdownGrace)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownGrace)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// LocalIP returns the first non-loopback IPv4 address, or "localhost".
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "localhost"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip := ipNet.IP.To4(); ip != nil {
			return ip.String()
		}
	}
	return "localhost"
}
