package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/utils"
)

// confirmBoundaries is the batch size above which a jump asks first.
const confirmBoundaries = 7

// travel moves the simulated clock and finishes the rollover batch before
// returning. SQLite stores are backed up first.
func travel(ctx *Context, target time.Time, yes bool) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	if n := len(clock.Boundaries(ctx.Clock.Today(), utils.DateKey(target, ctx.Clock.Location()))); n > confirmBoundaries && !yes {
		ok := false
		prompt := huh.NewConfirm().
			Title(fmt.Sprintf("Jump forward %d days?", n)).
			Description("Every crossed day is archived and rolled over.").
			Value(&ok)
		if err := prompt.Run(); err != nil {
			return err
		}
		if !ok {
			ctx.println("Time travel cancelled.")
			return nil
		}
	}

	bg := context.Background()
	if err := ctx.BackupBeforeTravel(bg); err != nil {
		return err
	}

	bounds, err := ctx.Clock.TravelTo(target)
	if err != nil {
		return err
	}
	return finishTravel(ctx, bg, bounds)
}

func finishTravel(ctx *Context, bg context.Context, bounds []clock.Boundary) error {
	rec, err := ctx.Detector().HandleTravel(bg, bounds)
	if err != nil {
		return fmt.Errorf("rollover incomplete, it will resume on the next command: %w", err)
	}
	printClock(ctx)
	if len(bounds) > 0 {
		ctx.printf("✓ Crossed %d day boundar%s\n", len(bounds), plural(len(bounds), "y", "ies"))
	}
	ctx.printf("Record date: %s\n", rec.Date)
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func printClock(ctx *Context) {
	c := ctx.Clock
	ctx.printf("Now:   %s\n", c.Now().Format("Mon 2006-01-02 15:04 MST"))
	ctx.printf("Today: %s\n", c.Today())
	if c.Traveling() {
		ctx.println(warnStyle.Render(fmt.Sprintf("Time travel active: offset %s", c.Offset().Round(time.Minute))))
	}
}

type TravelToCmd struct {
	When string `arg:"" help:"Target instant: RFC3339, \"YYYY-MM-DD HH:MM\" or YYYY-MM-DD."`
	Yes  bool   `short:"y" help:"Do not ask before long jumps."`
}

func (c *TravelToCmd) Run(ctx *Context) error {
	target, err := utils.ParseInstant(c.When, ctx.Clock.Location())
	if err != nil {
		return err
	}
	return travel(ctx, target, c.Yes)
}

type TravelDaysCmd struct {
	Days int  `arg:"" help:"Days to jump; negative goes back."`
	Yes  bool `short:"y" help:"Do not ask before long jumps."`
}

func (c *TravelDaysCmd) Run(ctx *Context) error {
	if c.Days == 0 {
		return fmt.Errorf("days must not be zero")
	}
	return travel(ctx, ctx.Clock.Now().AddDate(0, 0, c.Days), c.Yes)
}

type TravelResetCmd struct{}

func (c *TravelResetCmd) Run(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	if !ctx.Clock.Traveling() {
		ctx.println("Clock is already at real time.")
		return nil
	}
	bg := context.Background()
	return finishTravel(ctx, bg, ctx.Clock.Reset())
}

type TravelStatusCmd struct{}

func (c *TravelStatusCmd) Run(ctx *Context) error {
	printClock(ctx)
	if !ctx.Clock.Traveling() {
		ctx.println("Clock is at real time.")
	}
	return nil
}
