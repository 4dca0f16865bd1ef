package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/plexaa/internal/models"
	"github.com/desertthunder/plexaa/internal/server"
	"github.com/desertthunder/plexaa/internal/shared"
	"github.com/urfave/cli/v3"
)

const pinPollInterval = 2 * time.Second

// Login signs in to plex.tv with a PIN.
//
// Opens the plex.tv sign-in page with a forward URL pointing at a local callback server and then
// waits for either the callback or a poll of the PIN to yield a token.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	if err := r.connect(); err != nil {
		return err
	}

	pin, err := r.account.CreatePin(ctx)
	if err != nil {
		return fmt.Errorf("failed to create login PIN: %w", err)
	}
	r.logger.Debug("created login PIN", "id", pin.ID, "code", pin.Code)

	token, err := r.waitForPin(ctx, pin, cmd.Bool("no-browser"), cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if err := r.credentials().SetToken(token); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	account, err := r.account.User(ctx, token)
	if err != nil {
		return fmt.Errorf("token stored but could not be verified: %w", err)
	}

	r.logger.Info("signed in", "username", account.Username)
	r.writePlain("✓ Signed in as %s\n", displayName(account))
	r.writePlainln("Next: run `plexaa servers list` to see your servers.")
	return nil
}

func (r *Runner) waitForPin(ctx context.Context, pin *models.Pin, noBrowser bool, timeout time.Duration) (string, error) {
	handler := server.NewPinHandler(r.account, pin)
	router := server.NewBasicRouter()
	router.Use(server.Logger(r.logger))
	router.Handler(handler)

	addr := r.config.Server.Addr()
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Debug("starting callback server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("failed to shutdown callback server", "error", err)
		}
	}()

	authURL := r.account.AuthURL(pin, handler.CallbackURL(addr))
	if noBrowser {
		r.writePlain("Open this URL to sign in:\n%s\n", authURL)
	} else if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser automatically", "error", err)
		r.writePlain("Please open this URL in your browser:\n%s\n", authURL)
	} else {
		r.writePlain("Opening browser to sign in...\n")
	}
	r.writePlain("PIN code: %s\n", pin.Code)

	ticker := time.NewTicker(pinPollInterval)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case result := <-handler.Result():
			if err := result.Error(); err != nil {
				return "", fmt.Errorf("login failed: %w", err)
			}
			return result.Token, nil
		case err := <-serverErrors:
			r.logger.Warn("callback server failed, waiting on PIN approval only", "error", err)
		case <-ticker.C:
			checked, err := r.account.CheckPin(ctx, pin.ID)
			if err != nil {
				if errors.Is(err, shared.ErrPinExpired) {
					return "", err
				}
				r.logger.Debug("PIN check failed", "error", err)
				continue
			}
			if checked.AuthToken != "" {
				return checked.AuthToken, nil
			}
		case <-deadline:
			return "", fmt.Errorf("%w: login not approved within %s", shared.ErrTimeout, timeout)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// Logout forgets the stored token.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	if err := r.credentials().ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	r.writePlain("✓ Signed out\n")
	return nil
}

// AuthStatus shows the signed-in account.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	token, err := r.token()
	if err != nil {
		return err
	}
	if err := r.connect(); err != nil {
		return err
	}

	account, err := r.account.User(ctx, token)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(account, true)
	}

	r.writePlainHeader("Plex Account")
	r.writePlain("User:  %s\n", displayName(account))
	if account.Email != "" {
		r.writePlain("Email: %s\n", account.Email)
	}
	if pinned := r.settings.PinnedServer(); pinned != "" {
		r.writePlain("Pinned server: %s\n", pinned)
	}
	if pinned := r.settings.PinnedLibrary(); pinned != "" {
		r.writePlain("Pinned library: %s\n", pinned)
	}
	return nil
}

func displayName(a *models.Account) string {
	if a.Title != "" && a.Title != a.Username {
		return fmt.Sprintf("%s (%s)", a.Title, a.Username)
	}
	return a.Username
}
