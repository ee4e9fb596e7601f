package cli

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leaderreps/leaderreps/internal/api"
	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/config"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/keyring"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/rollover"
	"github.com/leaderreps/leaderreps/internal/transition"
)

var errNoSecret = fmt.Errorf("no API signing secret; set %s, %s or run 'leaderreps token'",
	constants.ConfigJWTSecret, constants.EnvJWTSecret)

type ServeCmd struct {
	Addr    string   `help:"Listen address." default:"${listen_addr}"`
	Origins []string `help:"Allowed CORS origins." default:"*"`
}

func (c *ServeCmd) Run(ctx *Context) error {
	if ctx.Config.JWTSecret == "" {
		return errNoSecret
	}
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clocks := func(userID string) *clock.Clock {
		offsets := clock.NewFileOffsetStore(config.OffsetPath(userID))
		logger.Debug("Opening user clock", "user", userID, "offsets", offsets.Path())
		return clock.New(ctx.Config.Location, offsets)
	}
	factory := func(userID string, clk *clock.Clock) (*transition.Detector, func()) {
		changes, cancel := ctx.Watcher.Subscribe()
		engine := rollover.New(ctx.Watcher, ctx.Engine.Policy(), clk.Now)
		d := transition.New(userID, ctx.Watcher, engine, clk, transition.WithChanges(changes))
		return d, cancel
	}

	opts := []api.Option{api.WithAllowedOrigins(c.Origins), api.WithBeforeTravel(ctx.BackupBeforeTravel)}

	srv := api.NewServer(sigCtx, clocks, ctx.Watcher, factory, []byte(ctx.Config.JWTSecret), opts...)
	defer srv.Close()

	ctx.printf("Serving the leaderreps API on %s\n", c.Addr)
	return srv.ListenAndServe(sigCtx, c.Addr)
}

// TokenCmd mints a bearer token, creating the signing secret in the OS
// keyring on first use.
type TokenCmd struct {
	For string        `help:"User key the token identifies (default: the configured user)."`
	TTL time.Duration `help:"Token lifetime." default:"720h"`
}

func (c *TokenCmd) Run(ctx *Context) error {
	secret := ctx.Config.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		secret = hex.EncodeToString(buf)
		if err := keyring.Set(keyring.JWTSecret, secret); err != nil {
			return fmt.Errorf("%w (or set %s)", err, constants.EnvJWTSecret)
		}
		ctx.println("✓ Created API signing secret in OS keyring")
	}

	user := c.For
	if user == "" {
		user = ctx.Config.User
	}
	token, err := api.IssueToken([]byte(secret), user, c.TTL)
	if err != nil {
		return err
	}
	ctx.println(token)
	return nil
}
