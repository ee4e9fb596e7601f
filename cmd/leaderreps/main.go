package main

import (
	"github.com/alecthomas/kong"

	"github.com/leaderreps/leaderreps/internal/cli"
	"github.com/leaderreps/leaderreps/internal/config"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/errors"
)

var CLI struct {
	cli.Globals `embed:""`
	Version     kong.VersionFlag

	Init     cli.InitCmd     `cmd:"" help:"Write the config file and initialize storage."`
	Migrate  cli.MigrateCmd  `cmd:"" help:"Run database migrations."`
	Today    cli.TodayCmd    `cmd:"" help:"Show today's practice, rolling over first if the day changed." default:"1"`
	Streak   cli.StreakCmd   `cmd:"" help:"Show the current and longest streak."`
	Rollover cli.RolloverCmd `cmd:"" help:"Check for a day change and roll over now."`
	Win      struct {
		Set  cli.WinSetCmd  `cmd:"" help:"Set a morning win."`
		Done cli.WinDoneCmd `cmd:"" help:"Mark a morning win as done."`
	} `cmd:"" help:"Manage morning wins."`
	Commit struct {
		Add  cli.CommitAddCmd  `cmd:"" help:"Add an active commitment."`
		Done cli.CommitDoneCmd `cmd:"" help:"Mark a commitment as committed."`
	} `cmd:"" help:"Manage daily rep commitments."`
	Task struct {
		Add  cli.TaskAddCmd  `cmd:"" help:"Add a task for today."`
		Done cli.TaskDoneCmd `cmd:"" help:"Mark a task as done."`
	} `cmd:"" help:"Manage other tasks."`
	Reflect cli.ReflectCmd `cmd:"" help:"Write the evening reflection."`
	Travel  struct {
		To     cli.TravelToCmd     `cmd:"" help:"Move the clock to an instant."`
		Days   cli.TravelDaysCmd   `cmd:"" help:"Move the clock by whole days."`
		Reset  cli.TravelResetCmd  `cmd:"" help:"Return to real time."`
		Status cli.TravelStatusCmd `cmd:"" help:"Show the simulated clock." default:"1"`
	} `cmd:"" help:"Time travel for testing day transitions."`
	Archive struct {
		List cli.ArchiveListCmd `cmd:"" help:"List archived days." default:"1"`
		Show cli.ArchiveShowCmd `cmd:"" help:"Show one archived day."`
	} `cmd:"" help:"Browse archived days."`
	Holidays cli.HolidaysCmd `cmd:"" help:"List the holidays excluded from streaks."`
	Watch    cli.WatchCmd    `cmd:"" help:"Keep the record current at every midnight with a live dashboard."`
	Serve    cli.ServeCmd    `cmd:"" help:"Serve the HTTP API and keep records current."`
	Token    cli.TokenCmd    `cmd:"" help:"Mint an API bearer token."`
	DB       struct {
		Connection struct {
			Set    cli.DBConnectionSetCmd    `cmd:"" help:"Store a PostgreSQL connection string in the OS keyring."`
			Delete cli.DBConnectionDeleteCmd `cmd:"" help:"Remove the stored connection string."`
			Status cli.DBConnectionStatusCmd `cmd:"" help:"Show keyring availability and the stored connection." default:"1"`
		} `cmd:"" help:"Manage the stored PostgreSQL connection."`
	} `cmd:"" name:"db" help:"Database settings."`
	Backup struct {
		Create  cli.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    cli.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore cli.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage SQLite backups."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("LeaderReps daily practice: rollover, streaks and time travel"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version":     constants.Version,
			"config_path": config.DefaultConfigPath(),
			"env_db":      constants.EnvDBConnection,
			"listen_addr": constants.DefaultListenAddr,
		},
	)

	appCtx, err := cli.NewContext(&CLI.Globals)
	if err != nil {
		errors.Fatal(err)
	}

	errors.Fatal(ctx.Run(appCtx))
}
