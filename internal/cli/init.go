package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/leaderreps/leaderreps/internal/config"
	"github.com/leaderreps/leaderreps/internal/storage"
)

type InitCmd struct {
	NoConfig bool `help:"Do not write a config file."`
}

func (c *InitCmd) Run(ctx *Context) error {
	if !c.NoConfig && ctx.ConfigFile != "" {
		if _, err := os.Stat(ctx.ConfigFile); errors.Is(err, os.ErrNotExist) {
			user := ctx.Config.User
			tz := ctx.Config.Location.String()
			policy := string(ctx.Config.CommitmentPolicy)
			cfg := config.FileConfig{User: &user, Timezone: &tz, CommitmentPolicy: &policy}
			if !config.IsPostgres(ctx.Config.Database) {
				db := ctx.Config.Database
				cfg.Database = &db
			}
			if err := config.WriteConfig(ctx.ConfigFile, cfg); err != nil {
				return err
			}
			ctx.printf("Wrote config: %s\n", ctx.ConfigFile)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	ctx.printf("Initialized leaderreps storage at: %s\n", ctx.Store.GetConfigPath())
	return nil
}

type MigrateCmd struct{}

func (c *MigrateCmd) Run(ctx *Context) error {
	m, ok := ctx.Store.(storage.Migrator)
	if !ok {
		return fmt.Errorf("migrate command only supports SQLite and PostgreSQL storage")
	}
	defer ctx.Store.Close()

	count, err := m.Migrate(context.Background())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if count == 0 {
		ctx.println("No migrations to apply. Database is up to date.")
	} else {
		ctx.printf("Successfully applied %d migration(s).\n", count)
	}
	return nil
}
