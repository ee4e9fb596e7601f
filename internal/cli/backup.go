package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"

	"github.com/leaderreps/leaderreps/internal/backup"
	"github.com/leaderreps/leaderreps/internal/constants"
)

func backupManager(ctx *Context) (*backup.Manager, error) {
	if !ctx.IsSQLite() {
		return nil, errors.New("backups are only supported for SQLite storage")
	}
	if _, err := os.Stat(ctx.Store.GetConfigPath()); err != nil {
		return nil, fmt.Errorf("storage not initialized, run 'leaderreps init' first")
	}
	return backup.NewManager(ctx.Store.GetConfigPath()), nil
}

type BackupCreateCmd struct {
	Label string `help:"Optional label added to the file name."`
}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	path, err := mgr.CreateBackup(context.Background(), c.Label)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}
	ctx.printf("✓ Backup created: %s\n", filepath.Base(path))
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}
	backups, err := mgr.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	if len(backups) == 0 {
		ctx.println("No backups found.")
		ctx.printf("Backups are stored in: %s\n", mgr.GetBackupDir())
		return nil
	}

	ctx.printf("Available backups (%d total, keeping most recent %d):\n\n", len(backups), constants.MaxBackups)
	for _, b := range backups {
		label := ""
		if b.Label != "" {
			label = mutedStyle.Render(" [" + b.Label + "]")
		}
		ctx.printf("  %s  %s  (%.1f KB)%s\n",
			b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), float64(b.Size)/1024.0, label)
	}
	ctx.printf("\nBackup directory: %s\n", mgr.GetBackupDir())
	return nil
}

type BackupRestoreCmd struct {
	BackupFile string `arg:"" help:"Path or filename of the backup to restore."`
	Yes        bool   `short:"y" help:"Restore without asking."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := backupManager(ctx)
	if err != nil {
		return err
	}

	path := c.BackupFile
	if !filepath.IsAbs(path) {
		if candidate := filepath.Join(mgr.GetBackupDir(), c.BackupFile); fileExists(candidate) {
			path = candidate
		}
	}
	if !fileExists(path) {
		return fmt.Errorf("backup file not found: %s", path)
	}

	if !c.Yes {
		ok := false
		confirm := huh.NewConfirm().
			Title("Replace the current database with " + filepath.Base(path) + "?").
			Description("The current database is backed up before restoring.").
			Value(&ok)
		if err := confirm.Run(); err != nil {
			return err
		}
		if !ok {
			ctx.println("Restore cancelled.")
			return nil
		}
	}

	if err := ctx.Store.Close(); err != nil {
		ctx.printf("Warning: failed to close database connection: %v\n", err)
	}
	if err := mgr.RestoreBackup(context.Background(), path); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	ctx.println("✓ Database restored successfully!")
	ctx.println("Restart any running leaderreps processes to use the restored database.")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
