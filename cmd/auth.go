package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/kbx/internal/server"
	"github.com/urfave/cli/v3"
)

// Token mints a bearer token for the API server.
//
// The token is printed alone on stdout so it can be captured by scripts.
func (r *Runner) Token(ctx context.Context, cmd *cli.Command) error {
	user := cmd.String("user")
	if user == "" {
		user = r.config.User.ID
	}

	token, err := server.AuthenticatorFromConfig(r.config).Mint(user)
	if err != nil {
		return err
	}
	r.logger.Debug("minted token", "user", user, "ttl", r.config.Server.TokenTTL)
	return r.writePlain("%s\n", token)
}

// TokenVerify checks a token against the configured secret and prints its user.
func (r *Runner) TokenVerify(ctx context.Context, cmd *cli.Command) error {
	token := cmd.StringArg("token")
	if token == "" {
		token = r.config.Remote.Token
	}

	user, err := server.AuthenticatorFromConfig(r.config).Verify(token)
	if err != nil {
		return err
	}
	return r.writePlain("✓ Valid token for user %s\n", user)
}

// Serve runs the HTTP API and realtime feed over the local database until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("host") {
		r.config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = int(cmd.Int("port"))
	}

	backend, err := r.openLocal()
	if err != nil {
		return err
	}

	auth := server.AuthenticatorFromConfig(r.config)
	if !auth.Enabled() {
		r.logger.Warn("server.jwt_secret is empty, every request acts as the configured user", "user", r.config.User.ID)
	}

	srv := server.New(r.config.Server, auth, backend, r.logger)
	go func() {
		select {
		case addr := <-srv.Started():
			r.writePlain("✓ Listening on http://%s\n", addr)
		case <-ctx.Done():
		}
	}()

	if err := srv.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	r.logger.Info("server stopped")
	return nil
}
