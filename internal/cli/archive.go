package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/leaderreps/leaderreps/internal/calendar"
	"github.com/leaderreps/leaderreps/internal/history"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/internal/utils"
)

type ArchiveListCmd struct {
	From string `help:"First date (YYYY-MM-DD), inclusive."`
	To   string `help:"Last date (YYYY-MM-DD), inclusive."`
}

func (c *ArchiveListCmd) Run(ctx *Context) error {
	for _, d := range []string{c.From, c.To} {
		if d == "" {
			continue
		}
		if _, err := utils.ParseDate(d); err != nil {
			return err
		}
	}
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	archives, err := ctx.Store.ListArchives(context.Background(), ctx.Config.User, c.From, c.To)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	if len(archives) == 0 {
		ctx.println("No archived days found.")
		return nil
	}

	ctx.printf("%-12s %-7s %-7s %-7s %s\n", "DATE", "REPS", "WINS", "TOTAL", "SOURCE")
	for _, a := range archives {
		ctx.printf("%-12s %-7s %-7s %-7s %s\n",
			a.Date, a.Scorecard.Reps, a.Scorecard.Win, a.Scorecard.Total(), a.RolloverSource)
	}
	return nil
}

type ArchiveShowCmd struct {
	Date string `arg:"" help:"Archived date (YYYY-MM-DD)."`
	JSON bool   `help:"Print the archive as JSON."`
}

func (c *ArchiveShowCmd) Run(ctx *Context) error {
	if _, err := utils.ParseDate(c.Date); err != nil {
		return err
	}
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	a, err := ctx.Store.GetArchive(context.Background(), ctx.Config.User, c.Date)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no archive for %s", c.Date)
	}
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(ctx, a)
	}

	printRecord(ctx, a.DailyPracticeRecord)
	ctx.printf("Archived %s via %s\n", a.ArchivedAt.In(ctx.Clock.Location()).Format("2006-01-02 15:04"), a.RolloverSource)
	if cur, err := ctx.Store.GetCurrent(context.Background(), ctx.Config.User); err == nil {
		byDate := func(e models.ScorecardEntry) string { return e.Date }
		if e, ok := history.Find(history.Normalize(cur.ScorecardHistory, byDate), c.Date, byDate); ok {
			ctx.printf("Final score %s (reps %s, wins %s)\n", e.Score, e.RepsScore, e.WinsScore)
		}
	}
	if r := a.EveningReflection; r.HasContent() {
		ctx.println("\nReflection")
		ctx.printf("  good:   %s\n  better: %s\n  best:   %s\n", r.Good, r.Better, r.Best)
	}
	return nil
}

type HolidaysCmd struct {
	Year int `arg:"" optional:"" help:"Year to list (default: the current year)."`
}

func (c *HolidaysCmd) Run(ctx *Context) error {
	year := c.Year
	if year == 0 {
		year = ctx.Clock.Now().Year()
	}
	ctx.println(headingStyle.Render(fmt.Sprintf("Holidays %d", year)))
	for _, h := range calendar.Holidays(year) {
		ctx.printf("  %s  %-3s  %s\n", utils.FormatDate(h.Date), h.Date.Weekday().String()[:3], h.Name)
	}
	return nil
}
