// Package config reads the device-local TOML configuration and resolves it
// against command-line overrides and the environment.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/rollover"
	"github.com/leaderreps/leaderreps/internal/utils"
)

// FileConfig represents the TOML configuration file. Unset keys are nil.
type FileConfig struct {
	User             *string        `toml:"user"`
	Timezone         *string        `toml:"timezone"`
	CommitmentPolicy *string        `toml:"commitment_policy"`
	Database         *string        `toml:"database"`
	Debug            *bool          `toml:"debug"`
	JWTSecret        *string        `toml:"jwt_secret"`
	Notifier         NotifierConfig `toml:"notifier"`
}

// NotifierConfig maps the [notifier] table.
type NotifierConfig struct {
	Enabled *bool `toml:"enabled"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return FileConfig{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// WriteConfig writes cfg to path, refusing to replace an existing file.
func WriteConfig(path string, cfg FileConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Overrides are values supplied on the command line; empty means unset.
type Overrides struct {
	User     string
	Timezone string
	Database string
	Debug    bool
}

// Config is the fully resolved runtime configuration.
type Config struct {
	User             string
	Location         *time.Location
	CommitmentPolicy constants.CommitmentPolicy
	Database         string
	Debug            bool
	JWTSecret        string
	Notifier         bool
	ConfigDir        string
}

// Resolve applies, in increasing precedence: defaults, the file, the
// environment and command-line overrides.
func Resolve(file FileConfig, o Overrides) (Config, error) {
	cfg := Config{
		User:      defaultUser(),
		Database:  DefaultDBPath(),
		ConfigDir: ConfigDir(),
		Notifier:  true,
	}
	tz := constants.DefaultTimezone
	policy := ""

	if file.User != nil {
		cfg.User = *file.User
	}
	if file.Timezone != nil {
		tz = *file.Timezone
	}
	if file.CommitmentPolicy != nil {
		policy = *file.CommitmentPolicy
	}
	if file.Database != nil {
		cfg.Database = *file.Database
	}
	if file.Debug != nil {
		cfg.Debug = *file.Debug
	}
	if file.JWTSecret != nil {
		cfg.JWTSecret = *file.JWTSecret
	}
	if file.Notifier.Enabled != nil {
		cfg.Notifier = *file.Notifier.Enabled
	}

	if v := os.Getenv(constants.EnvDBConnection); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv(constants.EnvJWTSecret); v != "" {
		cfg.JWTSecret = v
	}

	if o.User != "" {
		cfg.User = o.User
	}
	if o.Timezone != "" {
		tz = o.Timezone
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	cfg.Debug = cfg.Debug || o.Debug

	if strings.TrimSpace(cfg.User) == "" {
		return Config{}, fmt.Errorf("%s must not be empty", constants.ConfigUser)
	}
	loc, err := utils.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", constants.ConfigTimezone, err)
	}
	cfg.Location = loc
	if cfg.CommitmentPolicy, err = rollover.ParsePolicy(policy); err != nil {
		return Config{}, fmt.Errorf("invalid %s: %w", constants.ConfigCommitmentPolicy, err)
	}
	return cfg, nil
}

func defaultUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "local"
}

// IsPostgres reports whether database names a PostgreSQL server.
func IsPostgres(database string) bool {
	return strings.HasPrefix(database, "postgres://") ||
		strings.HasPrefix(database, "postgresql://") ||
		strings.Contains(database, "host=")
}

// IsJSON reports whether database names a JSON file store.
func IsJSON(database string) bool {
	return strings.HasSuffix(strings.ToLower(database), ".json")
}
