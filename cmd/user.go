package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/animx/internal/ui"
	"github.com/urfave/cli/v3"
)

// UserRegister creates an account in the configured auth backend.
func (r *Runner) UserRegister(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.requireAuth(ctx)
	if err != nil {
		return err
	}

	user, err := auth.Register(ctx, cmd.String("username"), cmd.String("password"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"success": true, "user": user}, true)
	}
	return r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Registered %s", user.Username)))
}

// UserLogin checks credentials and prints a bearer token.
func (r *Runner) UserLogin(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.requireAuth(ctx)
	if err != nil {
		return err
	}

	session, err := auth.Login(ctx, cmd.String("username"), cmd.String("password"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"success": true, "user": session.User, "token": session.Token}, true)
	}
	r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Logged in as %s", session.User.Username)))
	if session.User.IsVIP {
		r.writePlain("VIP: yes\n")
	}
	return r.writePlain("Token: %s\n", session.Token)
}

// UserVIP grants or revokes the VIP flag.
func (r *Runner) UserVIP(ctx context.Context, cmd *cli.Command) error {
	auth, err := r.requireAuth(ctx)
	if err != nil {
		return err
	}

	username := cmd.String("username")
	vip := !cmd.Bool("revoke")
	if err := auth.SetVIP(ctx, username, vip); err != nil {
		return err
	}

	kind := "a VIP user"
	if !vip {
		kind = "a regular user"
	}
	return r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ User %s is now %s", username, kind)))
}
