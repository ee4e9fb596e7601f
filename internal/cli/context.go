package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/leaderreps/leaderreps/internal/backup"
	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/config"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/keyring"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/rollover"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/internal/storage/postgres"
	"github.com/leaderreps/leaderreps/internal/storage/sqlite"
	"github.com/leaderreps/leaderreps/internal/transition"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config   string `help:"Config file path." type:"path" default:"${config_path}"`
	User     string `help:"User key (overrides the config file)."`
	Timezone string `help:"IANA timezone that pins \"today\"."`
	DB       string `name:"db" help:"SQLite path, .json path or PostgreSQL connection string. Credentials must NOT be embedded; use 'leaderreps db connection set' or ${env_db} instead."`
	Debug    bool   `help:"Enable debug logging."`
}

type Context struct {
	Config     config.Config
	Store      storage.Provider
	Watcher    *storage.Watcher
	Clock      *clock.Clock
	Engine     *rollover.Engine
	Out        io.Writer
	ConfigFile string
}

// NewContext resolves configuration and wires the store, clock and
// rollover engine. The store is not loaded; commands call Store.Load.
func NewContext(g *Globals) (*Context, error) {
	file, err := config.LoadConfig(g.Config)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Resolve(file, config.Overrides{
		User:     g.User,
		Timezone: g.Timezone,
		Database: g.DB,
		Debug:    g.Debug,
	})
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{Debug: cfg.Debug, ConfigDir: cfg.ConfigDir}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	fromKeyring := false
	if g.DB == "" && os.Getenv(constants.EnvDBConnection) == "" && file.Database == nil {
		if conn, err := keyring.Get(keyring.DatabaseConnection); err == nil {
			cfg.Database = conn
			fromKeyring = true
		}
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = keyring.Lookup(keyring.JWTSecret, "")
	}

	store, err := OpenStore(cfg.Database, fromKeyring)
	if err != nil {
		return nil, err
	}

	c := NewContextWith(cfg, store, clock.NewFileOffsetStore(config.OffsetPath(cfg.User)))
	c.ConfigFile = g.Config
	return c, nil
}

// NewContextWith wires a context around an existing store.
func NewContextWith(cfg config.Config, store storage.Provider, offsets clock.OffsetStore, opts ...clock.Option) *Context {
	w := storage.NewWatcher(store)
	clk := clock.New(cfg.Location, offsets, opts...)
	return &Context{
		Config:  cfg,
		Store:   store,
		Watcher: w,
		Clock:   clk,
		Engine:  rollover.New(w, cfg.CommitmentPolicy, clk.Now),
		Out:     os.Stdout,
	}
}

// OpenStore picks the backend from the database string. Connection strings
// read from the keyring may carry a password.
func OpenStore(database string, trusted bool) (storage.Provider, error) {
	switch {
	case config.IsPostgres(database):
		if err := postgres.ValidateConnString(database); err != nil {
			if !(trusted && errors.Is(err, postgres.ErrEmbeddedCredentials)) {
				if errors.Is(err, postgres.ErrEmbeddedCredentials) {
					return nil, fmt.Errorf("%w; store it with 'leaderreps db connection set' or use %s, .pgpass or PGPASSWORD",
						err, constants.EnvDBConnection)
				}
				return nil, err
			}
		}
		return postgres.New(database), nil
	case config.IsJSON(database):
		return storage.NewJSONStore(database), nil
	default:
		return sqlite.NewStore(database), nil
	}
}

// Detector builds the day-transition detector of the configured user.
func (c *Context) Detector(opts ...transition.Option) *transition.Detector {
	return transition.New(c.Config.User, c.Watcher, c.Engine, c.Clock, opts...)
}

// IsSQLite reports whether the store is a local SQLite file.
func (c *Context) IsSQLite() bool {
	_, ok := c.Store.(*sqlite.Store)
	return ok
}

// BackupBeforeTravel snapshots a SQLite store before the clock moves, so
// a mistaken jump can be restored. Other backends have nothing to snapshot.
func (c *Context) BackupBeforeTravel(ctx context.Context) error {
	if !c.IsSQLite() {
		return nil
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.CreateBackup(ctx, "pre-travel"); err != nil {
		return fmt.Errorf("pre-travel backup failed: %w", err)
	}
	return nil
}

func (c *Context) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) println(args ...interface{}) {
	fmt.Fprintln(c.Out, args...)
}
