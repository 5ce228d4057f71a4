package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/animx/internal/server"
	"github.com/desertthunder/animx/internal/shared"
	"github.com/desertthunder/animx/internal/web"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP proxy until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := r.buildServer(ctx, cmd)
	if err != nil {
		return err
	}

	addr := r.config.Server.Addr()
	r.logger.Info("server starting", "addr", addr)
	r.logger.Infof("local:   http://localhost:%d", r.config.Server.Port)
	r.logger.Infof("network: http://%s:%d", server.LocalIP(), r.config.Server.Port)

	return srv.ListenAndServe(ctx)
}

// buildServer wires the engine, auth and static site into a [server.Server].
func (r *Runner) buildServer(ctx context.Context, cmd *cli.Command) (*server.Server, error) {
	if port := cmd.Int("port"); port > 0 {
		r.config.Server.Port = port
	}

	if r.logger.GetLevel() <= log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	provider := r.providerService()
	if provider.Configured() {
		r.logger.Info("provider credential loaded", "key", shared.MaskSecret(r.config.Provider.APIKey))
	} else {
		r.logger.Error("provider credential missing; generation requests will fail", "env", r.config.Provider.APIKeyEnv)
	}

	auth, err := r.authService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth backend: %w", err)
	}
	if auth == nil {
		r.logger.Warn("auth backend disabled, /api/auth will return 503")
	}

	deps := server.Deps{
		Generator: r.generator(),
		Provider:  provider,
		Auth:      auth,
		Logger:    r.logger,
	}

	if dir := r.config.Server.StaticDir; dir != "" {
		site, err := web.New(dir)
		if err != nil {
			r.logger.Warn("static front end disabled", "error", err)
		} else {
			deps.Site = site
			r.logger.Info("serving static front end", "dir", site.Root())
		}
	}

	return server.New(*r.config, deps), nil
}
