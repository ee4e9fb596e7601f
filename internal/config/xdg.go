package config

import (
	"net/url"
	"os"
	"path/filepath"

	"github.com/leaderreps/leaderreps/internal/constants"
)

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func ConfigDir() string {
	return filepath.Join(XDGConfigHome(), constants.AppName)
}

func DataDir() string {
	return filepath.Join(XDGDataHome(), constants.AppName)
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DefaultDBPath returns the default SQLite database path.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), constants.AppName+".db")
}

// OffsetPath returns the device-local time-travel offset file of userID.
// Every user key travels on its own offset.
func OffsetPath(userID string) string {
	return filepath.Join(DataDir(), "offsets", url.PathEscape(userID)+"."+constants.OffsetFileName)
}
