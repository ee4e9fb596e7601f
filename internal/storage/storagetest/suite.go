// Package storagetest runs the same behavioural checks against every
// storage.Provider backend.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/storage"
)

// Run exercises an initialized provider returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Provider) {
	t.Run("CurrentRoundTrip", func(t *testing.T) { testCurrentRoundTrip(t, open(t)) })
	t.Run("CurrentIsPerUser", func(t *testing.T) { testCurrentIsPerUser(t, open(t)) })
	t.Run("MergeArchive", func(t *testing.T) { testMergeArchive(t, open(t)) })
	t.Run("ListArchives", func(t *testing.T) { testListArchives(t, open(t)) })
}

func archive(date string, source constants.RolloverSource) models.DailyLogArchive {
	rec := models.NewDailyPracticeRecord(date)
	return models.DailyLogArchive{
		DailyPracticeRecord: rec,
		ArchivedAt:          time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		RolloverSource:      source,
	}
}

func testCurrentRoundTrip(t *testing.T, p storage.Provider) {
	ctx := context.Background()

	if _, err := p.GetCurrent(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetCurrent on empty store = %v, want ErrNotFound", err)
	}

	rec := models.NewDailyPracticeRecord("2024-03-01")
	rec.MorningWins[0].Text = "Ship it"
	rec.ActiveCommitments = []models.Commitment{{ID: "c1", Text: "Coach", Status: models.RepCommitted}}
	rec.RepsHistory = []models.RepsHistoryEntry{{Date: "2024-02-29", CompletedCount: 1, TotalCount: 1, Items: []models.RepItem{}}}
	if err := p.SaveCurrent(ctx, "u1", rec); err != nil {
		t.Fatalf("SaveCurrent failed: %v", err)
	}

	got, err := p.GetCurrent(ctx, "u1")
	if err != nil {
		t.Fatalf("GetCurrent failed: %v", err)
	}
	if got.Date != "2024-03-01" || got.MorningWins[0].Text != "Ship it" {
		t.Errorf("GetCurrent = %+v", got)
	}
	if len(got.ActiveCommitments) != 1 || got.ActiveCommitments[0].Status != models.RepCommitted {
		t.Errorf("commitments = %+v", got.ActiveCommitments)
	}
	if len(got.RepsHistory) != 1 || got.RepsHistory[0].Date != "2024-02-29" {
		t.Errorf("repsHistory = %+v", got.RepsHistory)
	}

	rec.Date = "2024-03-02"
	if err := p.SaveCurrent(ctx, "u1", rec); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = p.GetCurrent(ctx, "u1")
	if err != nil || got.Date != "2024-03-02" {
		t.Errorf("after overwrite: %+v, %v", got.Date, err)
	}
}

func testCurrentIsPerUser(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	if err := p.SaveCurrent(ctx, "alice", models.NewDailyPracticeRecord("2024-03-01")); err != nil {
		t.Fatalf("SaveCurrent failed: %v", err)
	}
	if _, err := p.GetCurrent(ctx, "bob"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCurrent(bob) = %v, want ErrNotFound", err)
	}
}

func testMergeArchive(t *testing.T, p storage.Provider) {
	ctx := context.Background()

	first := archive("2024-03-01", constants.SourceLazyClient)
	first.StreakCount = 3
	if err := p.MergeArchive(ctx, "u1", first); err != nil {
		t.Fatalf("MergeArchive failed: %v", err)
	}

	second := archive("2024-03-01", constants.SourceMidnight)
	second.StreakCount = 4
	if err := p.MergeArchive(ctx, "u1", second); err != nil {
		t.Fatalf("second MergeArchive failed: %v", err)
	}

	got, err := p.GetArchive(ctx, "u1", "2024-03-01")
	if err != nil {
		t.Fatalf("GetArchive failed: %v", err)
	}
	if got.Date != "2024-03-01" || got.RolloverSource != constants.SourceMidnight || got.StreakCount != 4 {
		t.Errorf("merged archive = date %s source %s streak %d", got.Date, got.RolloverSource, got.StreakCount)
	}

	if _, err := p.GetArchive(ctx, "u1", "2024-03-05"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetArchive(missing) = %v, want ErrNotFound", err)
	}
}

func testListArchives(t *testing.T, p storage.Provider) {
	ctx := context.Background()
	for _, d := range []string{"2024-03-04", "2024-03-01", "2024-03-02"} {
		if err := p.MergeArchive(ctx, "u1", archive(d, constants.SourceTimeTravel)); err != nil {
			t.Fatalf("MergeArchive(%s) failed: %v", d, err)
		}
	}

	tests := []struct {
		from, to string
		want     []string
	}{
		{"", "", []string{"2024-03-01", "2024-03-02", "2024-03-04"}},
		{"2024-03-02", "", []string{"2024-03-02", "2024-03-04"}},
		{"", "2024-03-02", []string{"2024-03-01", "2024-03-02"}},
		{"2024-03-03", "2024-03-03", nil},
	}
	for _, tt := range tests {
		got, err := p.ListArchives(ctx, "u1", tt.from, tt.to)
		if err != nil {
			t.Fatalf("ListArchives(%q, %q) failed: %v", tt.from, tt.to, err)
		}
		var dates []string
		for _, a := range got {
			dates = append(dates, a.Date)
		}
		if len(dates) != len(tt.want) {
			t.Errorf("ListArchives(%q, %q) = %v, want %v", tt.from, tt.to, dates, tt.want)
			continue
		}
		for i := range dates {
			if dates[i] != tt.want[i] {
				t.Errorf("ListArchives(%q, %q) = %v, want %v", tt.from, tt.to, dates, tt.want)
				break
			}
		}
	}

	none, err := p.ListArchives(ctx, "nobody", "", "")
	if err != nil || len(none) != 0 {
		t.Errorf("ListArchives(nobody) = %v, %v", none, err)
	}
}
