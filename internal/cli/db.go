package cli

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/leaderreps/leaderreps/internal/config"
	"github.com/leaderreps/leaderreps/internal/keyring"
	"github.com/leaderreps/leaderreps/internal/storage/postgres"
)

// DBConnectionSetCmd stores a PostgreSQL connection string in the OS keyring.
type DBConnectionSetCmd struct {
	ConnectionString string `arg:"" help:"PostgreSQL connection string to store in the keyring."`
}

func (c *DBConnectionSetCmd) Run(ctx *Context) error {
	if !config.IsPostgres(c.ConnectionString) {
		return errors.New("connection string must be a valid PostgreSQL connection string")
	}
	if err := postgres.ValidateConnString(c.ConnectionString); err != nil {
		if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return fmt.Errorf("invalid connection string: %w", err)
		}
		ctx.println(warnStyle.Render("⚠️  Connection string contains a password; it is stored as-is in the encrypted OS keyring."))
	}

	if err := keyring.Set(keyring.DatabaseConnection, c.ConnectionString); err != nil {
		return err
	}
	ctx.println("✓ Connection string stored in OS keyring")
	ctx.println("  It is used whenever --db, the config file and the environment name no database")
	return nil
}

type DBConnectionDeleteCmd struct{}

func (c *DBConnectionDeleteCmd) Run(ctx *Context) error {
	if err := keyring.Delete(keyring.DatabaseConnection); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return errors.New("no connection string found in keyring")
		}
		return err
	}
	ctx.println("✓ Connection string deleted from OS keyring")
	return nil
}

type DBConnectionStatusCmd struct{}

func (c *DBConnectionStatusCmd) Run(ctx *Context) error {
	if !keyring.IsAvailable() {
		return keyring.ErrKeyringUnavailable
	}
	ctx.println("✓ OS keyring is available")

	conn, err := keyring.Get(keyring.DatabaseConnection)
	switch {
	case errors.Is(err, keyring.ErrNotFound):
		ctx.println("ℹ No connection string stored in keyring")
	case err != nil:
		return err
	default:
		ctx.printf("✓ Stored connection: %s\n", maskPassword(conn))
	}
	return nil
}

// maskPassword hides the password of a URL or key=value connection string.
func maskPassword(connStr string) string {
	if u, err := url.Parse(connStr); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return strings.Replace(u.String(), "xxxxx", "****", 1)
		}
		return connStr
	}
	parts := strings.Fields(connStr)
	for i, p := range parts {
		if k, _, ok := strings.Cut(p, "="); ok && strings.EqualFold(k, "password") {
			parts[i] = "password=****"
		}
	}
	return strings.Join(parts, " ")
}
