package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/streak"
)

type TodayCmd struct {
	JSON bool `help:"Print the record as JSON."`
}

func (c *TodayCmd) Run(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	d := ctx.Detector()
	rec, err := d.Load(context.Background())
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(ctx, rec)
	}

	printRecord(ctx, rec)
	s := d.GetStreak()
	ctx.printf("\nStreak: %d day(s)", s.CurrentStreak)
	if m, ok := streak.MilestoneFor(s.CurrentStreak); ok {
		ctx.printf("  %s", successStyle.Render(m.Message))
	}
	ctx.println()
	return nil
}

func printRecord(ctx *Context, rec models.DailyPracticeRecord) {
	header := rec.Date
	if ctx.Clock.Traveling() {
		header += warnStyle.Render("  (time travel active)")
	}
	ctx.println(headingStyle.Render("Daily practice " + header))

	ctx.println("\nMorning wins")
	for i, w := range rec.MorningWins {
		text := w.Text
		if w.IsEmpty() {
			text = mutedStyle.Render("(empty)")
		} else if w.CarriedOver {
			text += mutedStyle.Render("  carried over")
		}
		ctx.printf("  %d %s %s\n", i+1, checkbox(w.Completed), text)
	}

	ctx.println("\nCommitments")
	if len(rec.ActiveCommitments) == 0 {
		ctx.println(mutedStyle.Render("  none"))
	}
	for i, cm := range rec.ActiveCommitments {
		ctx.printf("  %d %s %s\n", i+1, checkbox(cm.Status == models.RepCommitted), cm.Text)
	}

	if len(rec.OtherTasks) > 0 {
		ctx.println("\nOther tasks")
		for i, t := range rec.OtherTasks {
			ctx.printf("  %d %s %s\n", i+1, checkbox(t.Completed), t.Text)
		}
	}

	ctx.printf("\nScorecard: reps %s, wins %s, total %s\n", rec.Scorecard.Reps, rec.Scorecard.Win, rec.Scorecard.Total())
}

type StreakCmd struct {
	JSON bool `help:"Print the streak as JSON."`
}

func (c *StreakCmd) Run(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	d := ctx.Detector()
	if _, err := d.Load(context.Background()); err != nil {
		return err
	}
	s := d.GetStreak()
	if c.JSON {
		return printJSON(ctx, s)
	}

	ctx.printf("Current streak: %d day(s)\n", s.CurrentStreak)
	ctx.printf("Longest streak: %d day(s)\n", s.LongestStreak)
	if s.LastActiveDate != "" {
		ctx.printf("Last active:    %s\n", s.LastActiveDate)
	}
	if m, ok := streak.MilestoneFor(s.CurrentStreak); ok {
		ctx.printf("Milestone:      %s (%d+ days)\n", successStyle.Render(m.Message), m.Threshold)
	}
	if next, ok := streak.NextMilestone(s.CurrentStreak); ok {
		ctx.printf("Next:           %s in %d day(s)\n", next.Message, next.Threshold-s.CurrentStreak)
	}
	return nil
}

// RolloverCmd forces a lazy check. It is a no-op when the record is current.
type RolloverCmd struct{}

func (c *RolloverCmd) Run(ctx *Context) error {
	if err := ctx.Store.Load(); err != nil {
		return err
	}
	defer ctx.Store.Close()

	bg := context.Background()
	// A missing record is created by the check below.
	before, _ := ctx.Store.GetCurrent(bg, ctx.Config.User)

	rec, err := ctx.Detector().CheckAndRollover(bg, constants.SourceLazyClient)
	if err != nil {
		return err
	}
	if before.Date != "" && before.Date != rec.Date {
		ctx.printf("✓ Rolled over %s → %s\n", before.Date, rec.Date)
	} else {
		ctx.printf("Record is current (%s)\n", rec.Date)
	}
	return nil
}

func printJSON(ctx *Context, v interface{}) error {
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
