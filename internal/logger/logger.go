// Package logger is the process-wide structured log. Rollovers, clock
// changes and abandoned store operations are recorded here; the engine
// itself never prints to the user.
package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/leaderreps/leaderreps/internal/constants"
)

// Logger is nil until Init or Capture runs; the helpers below are no-ops
// until then so packages can log from tests without setup.
var Logger *log.Logger

type Config struct {
	Debug     bool
	ConfigDir string
	// Console receives the same entries as the log file and lowers the
	// level to info, e.g. stderr for a headless watcher. Without it, debug
	// mode tees to stderr.
	Console io.Writer
}

// FilePath returns the rotating log file kept under configDir.
func FilePath(configDir string) string {
	return filepath.Join(configDir, "logs", constants.AppName+".log")
}

// Init points the global logger at the rotating log file.
func Init(cfg Config) error {
	path := FilePath(cfg.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	writers := []io.Writer{&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}}

	// Day transitions are info; a plain CLI run only keeps warnings.
	level := log.WarnLevel
	switch {
	case cfg.Console != nil:
		level = log.InfoLevel
		writers = append(writers, cfg.Console)
	case cfg.Debug:
		writers = append(writers, os.Stderr)
	}
	if cfg.Debug {
		level = log.DebugLevel
	}

	Logger = log.NewWithOptions(io.MultiWriter(writers...), log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          constants.AppName,
	})
	return nil
}

// Capture sends entries at level and above to w until restore is called,
// which puts the previous logger back.
func Capture(w io.Writer, level log.Level) (restore func()) {
	prev := Logger
	Logger = log.NewWithOptions(w, log.Options{Level: level, Prefix: constants.AppName})
	return func() { Logger = prev }
}

func Debug(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}

// Fatal logs and exits with status 1 even when no logger is set.
func Fatal(msg string, keyvals ...interface{}) {
	if Logger != nil {
		Logger.Fatal(msg, keyvals...)
	}
	os.Exit(1)
}
