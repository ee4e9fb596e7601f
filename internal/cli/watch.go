package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/notifier"
	"github.com/leaderreps/leaderreps/internal/transition"
	"github.com/leaderreps/leaderreps/internal/tui"
)

type WatchCmd struct {
	Headless bool `help:"Log day transitions and store failures to stderr instead of showing the dashboard."`
	NoNotify bool `help:"Do not send tray notifications."`
}

func (c *WatchCmd) Run(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	if c.Headless {
		if err := logger.Init(logger.Config{Debug: ctx.Config.Debug, ConfigDir: ctx.Config.ConfigDir, Console: os.Stderr}); err != nil {
			return err
		}
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes, cancelChanges := ctx.Watcher.Subscribe()
	defer cancelChanges()
	d := ctx.Detector(transition.WithChanges(changes))

	if ctx.Config.Notifier && !c.NoNotify {
		updates, cancel := d.Subscribe()
		defer cancel()
		go notifier.New().Watch(sigCtx, updates)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(sigCtx) }()

	if c.Headless {
		return c.logUpdates(sigCtx, ctx, d, runErr)
	}

	updates, cancel := d.Subscribe()
	defer cancel()
	model := tui.NewModel(sigCtx, ctx.Config.User, d, ctx.Clock, ctx.Watcher, updates, tui.WithBeforeTravel(ctx.BackupBeforeTravel))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(sigCtx))
	if _, err := p.Run(); err != nil && sigCtx.Err() == nil {
		return err
	}
	return nil
}

func (c *WatchCmd) logUpdates(sigCtx context.Context, ctx *Context, d *transition.Detector, runErr <-chan error) error {
	updates, cancel := d.Subscribe()
	defer cancel()

	ctx.printf("Watching %s (today %s). Press Ctrl+C to stop.\n", ctx.Config.User, ctx.Clock.Today())
	for {
		select {
		case <-sigCtx.Done():
			return nil
		case err := <-runErr:
			if sigCtx.Err() != nil {
				return nil
			}
			return err
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if t := u.Rollover; t != nil {
				logger.Info("Day transition", "user", ctx.Config.User, "from", t.From, "to", t.To, "source", t.Source)
				ctx.printf("✓ Rolled over %s → %s (%s), streak %d\n", t.From, t.To, t.Source, u.Streak.CurrentStreak)
			}
		}
	}
}
