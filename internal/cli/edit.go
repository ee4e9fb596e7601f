package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
)

// mutate loads the store and applies fn to the live record.
func mutate(ctx *Context, fn func(*models.DailyPracticeRecord) error) (models.DailyPracticeRecord, error) {
	if err := ctx.Store.Load(); err != nil {
		return models.DailyPracticeRecord{}, err
	}
	defer ctx.Store.Close()
	return ctx.Detector().Mutate(context.Background(), fn)
}

func winSlot(rec *models.DailyPracticeRecord, slot int) (*models.MorningWin, error) {
	if slot < 1 || slot > len(rec.MorningWins) {
		return nil, fmt.Errorf("win slot must be between 1 and %d", constants.MorningWinSlots)
	}
	return &rec.MorningWins[slot-1], nil
}

type WinSetCmd struct {
	Slot int    `arg:"" help:"Win slot (1-3)."`
	Text string `arg:"" help:"What will make today a win."`
}

func (c *WinSetCmd) Run(ctx *Context) error {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return fmt.Errorf("win text cannot be empty")
	}
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		w, err := winSlot(rec, c.Slot)
		if err != nil {
			return err
		}
		*w = models.MorningWin{ID: uuid.NewString(), Text: text, Saved: true}
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Win %d set: %s\n", c.Slot, text)
	return nil
}

type WinDoneCmd struct {
	Slot int  `arg:"" help:"Win slot (1-3)."`
	Undo bool `help:"Mark the win as not done."`
}

func (c *WinDoneCmd) Run(ctx *Context) error {
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		w, err := winSlot(rec, c.Slot)
		if err != nil {
			return err
		}
		if w.IsEmpty() {
			return fmt.Errorf("win slot %d is empty", c.Slot)
		}
		w.Completed = !c.Undo
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Win %d %s\n", c.Slot, doneWord(!c.Undo))
	return nil
}

func doneWord(done bool) string {
	if done {
		return "done"
	}
	return "reopened"
}

// findIndex resolves a 1-based position or an id prefix.
func findIndex(ref string, n int, id func(i int) string) (int, error) {
	if pos, err := strconv.Atoi(ref); err == nil {
		if pos < 1 || pos > n {
			return 0, fmt.Errorf("position %d out of range (1-%d)", pos, n)
		}
		return pos - 1, nil
	}
	match := -1
	for i := 0; i < n; i++ {
		if strings.HasPrefix(id(i), ref) {
			if match >= 0 {
				return 0, fmt.Errorf("%q matches more than one item", ref)
			}
			match = i
		}
	}
	if match < 0 {
		return 0, fmt.Errorf("no item matches %q", ref)
	}
	return match, nil
}

type CommitAddCmd struct {
	Text string `arg:"" help:"The leadership rep to commit to."`
}

func (c *CommitAddCmd) Run(ctx *Context) error {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return fmt.Errorf("commitment text cannot be empty")
	}
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		rec.ActiveCommitments = append(rec.ActiveCommitments, models.Commitment{
			ID:        uuid.NewString(),
			Status:    models.RepPending,
			Text:      text,
			CreatedAt: ctx.Clock.Now(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Commitment added: %s\n", text)
	return nil
}

type CommitDoneCmd struct {
	Ref  string `arg:"" help:"Position (1-based) or id prefix of the commitment."`
	Undo bool   `help:"Mark the commitment as pending again."`
}

func (c *CommitDoneCmd) Run(ctx *Context) error {
	var text string
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		i, err := findIndex(c.Ref, len(rec.ActiveCommitments), func(i int) string { return rec.ActiveCommitments[i].ID })
		if err != nil {
			return err
		}
		status := models.RepCommitted
		if c.Undo {
			status = models.RepPending
		}
		rec.ActiveCommitments[i].Status = status
		text = rec.ActiveCommitments[i].Text
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Commitment %s: %s\n", doneWord(!c.Undo), text)
	return nil
}

type TaskAddCmd struct {
	Text string `arg:"" help:"Task description."`
}

func (c *TaskAddCmd) Run(ctx *Context) error {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return fmt.Errorf("task text cannot be empty")
	}
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		rec.OtherTasks = append(rec.OtherTasks, models.Task{
			ID:        uuid.NewString(),
			Text:      text,
			CreatedAt: ctx.Clock.Now(),
		})
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Task added: %s\n", text)
	return nil
}

type TaskDoneCmd struct {
	Ref  string `arg:"" help:"Position (1-based) or id prefix of the task."`
	Undo bool   `help:"Mark the task as not done."`
}

func (c *TaskDoneCmd) Run(ctx *Context) error {
	var text string
	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		i, err := findIndex(c.Ref, len(rec.OtherTasks), func(i int) string { return rec.OtherTasks[i].ID })
		if err != nil {
			return err
		}
		rec.OtherTasks[i].Completed = !c.Undo
		text = rec.OtherTasks[i].Text
		return nil
	})
	if err != nil {
		return err
	}
	ctx.printf("✓ Task %s: %s\n", doneWord(!c.Undo), text)
	return nil
}

type ReflectCmd struct {
	Good   string `help:"What went well today."`
	Better string `help:"What could have gone better."`
	Best   string `help:"What you will do best tomorrow."`
}

func (c *ReflectCmd) Run(ctx *Context) error {
	if c.Good == "" && c.Better == "" && c.Best == "" {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewText().Title("Good").Description("What went well today?").Value(&c.Good),
				huh.NewText().Title("Better").Description("What could have gone better?").Value(&c.Better),
				huh.NewText().Title("Best").Description("What will you do best tomorrow?").Value(&c.Best),
			),
		)
		if err := form.Run(); err != nil {
			return err
		}
	}

	_, err := mutate(ctx, func(rec *models.DailyPracticeRecord) error {
		r := &rec.EveningReflection
		r.Good = strings.TrimSpace(c.Good)
		r.Better = strings.TrimSpace(c.Better)
		r.Best = strings.TrimSpace(c.Best)
		if r.HasContent() {
			now := ctx.Clock.Now()
			r.CompletedAt = &now
		}
		return nil
	})
	if err != nil {
		return err
	}
	ctx.println("✓ Reflection saved")
	return nil
}
