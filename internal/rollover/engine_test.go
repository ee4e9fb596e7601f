package rollover

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
	apperrors "github.com/leaderreps/leaderreps/internal/errors"
	"github.com/leaderreps/leaderreps/internal/models"
)

var fixedNow = time.Date(2024, 3, 2, 0, 0, 5, 0, time.UTC)

type memStore struct {
	archives   map[string]models.DailyLogArchive
	current    *models.DailyPracticeRecord
	archiveErr error
	saveErr    error
	calls      []string
}

func newMemStore() *memStore {
	return &memStore{archives: map[string]models.DailyLogArchive{}}
}

func (m *memStore) MergeArchive(_ context.Context, _ string, a models.DailyLogArchive) error {
	m.calls = append(m.calls, "archive:"+a.Date)
	if m.archiveErr != nil {
		return m.archiveErr
	}
	m.archives[a.Date] = a
	return nil
}

func (m *memStore) SaveCurrent(_ context.Context, _ string, rec models.DailyPracticeRecord) error {
	m.calls = append(m.calls, "current:"+rec.Date)
	if m.saveErr != nil {
		return m.saveErr
	}
	m.current = &rec
	return nil
}

func sampleRecord() models.DailyPracticeRecord {
	rec := models.NewDailyPracticeRecord("2024-03-01")
	rec.MorningWins = []models.MorningWin{
		{ID: "w1", Text: "Ship the draft", Completed: true, Saved: true},
		{ID: "w2", Text: "Call Dana", Saved: true},
		{ID: "w3"},
	}
	rec.OtherTasks = []models.Task{{ID: "t1", Text: "Inbox zero"}}
	rec.ActiveCommitments = []models.Commitment{
		{ID: "c1", Text: "Give feedback", Status: models.RepCommitted},
		{ID: "c2", Text: "Ask a question", Status: models.RepPending},
	}
	rec.EveningReflection = models.EveningReflection{Good: "Focus", Habits: map[string]bool{"read": true}}
	rec.StreakCount = 4
	rec.StreakCoins = 12
	return rec
}

func TestCompute_CarriesIncompleteWins(t *testing.T) {
	res, err := Compute(sampleRecord(), "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	wins := res.Next.MorningWins
	if len(wins) != constants.MorningWinSlots {
		t.Fatalf("got %d win slots, want %d", len(wins), constants.MorningWinSlots)
	}
	if wins[0].ID != "w2" || !wins[0].CarriedOver || !wins[0].Saved || wins[0].Completed {
		t.Errorf("carried win = %+v, want w2 carried, saved and not completed", wins[0])
	}
	for i := 1; i < len(wins); i++ {
		if !wins[i].IsEmpty() || wins[i].CarriedOver {
			t.Errorf("slot %d = %+v, want empty placeholder", i, wins[i])
		}
		if want := models.PlaceholderWinID("2024-03-02", i); wins[i].ID != want {
			t.Errorf("slot %d id = %q, want %q", i, wins[i].ID, want)
		}
	}

	if len(res.Next.WinsList) != 1 || res.Next.WinsList[0].ID != "w1" || res.Next.WinsList[0].Date != "2024-03-01" {
		t.Errorf("winsList = %+v, want single completed w1 dated 2024-03-01", res.Next.WinsList)
	}
}

func TestCompute_ResetsDay(t *testing.T) {
	res, err := Compute(sampleRecord(), "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceMidnight)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	next := res.Next

	if next.Date != "2024-03-02" {
		t.Errorf("Date = %q, want 2024-03-02", next.Date)
	}
	if next.LastUpdated != "2024-03-02T00:00:05Z" {
		t.Errorf("LastUpdated = %q", next.LastUpdated)
	}
	if len(next.OtherTasks) != 0 {
		t.Errorf("OtherTasks = %+v, want empty", next.OtherTasks)
	}
	if next.EveningReflection.HasContent() || len(next.EveningReflection.Habits) != 0 {
		t.Errorf("EveningReflection = %+v, want cleared", next.EveningReflection)
	}
	if next.DailyTargetRepStatus != models.RepPending {
		t.Errorf("DailyTargetRepStatus = %q, want Pending", next.DailyTargetRepStatus)
	}
	if next.Scorecard != (models.Scorecard{}) {
		t.Errorf("Scorecard = %+v, want zero", next.Scorecard)
	}
	if next.StreakCount != 4 || next.StreakCoins != 12 {
		t.Errorf("streak counters changed: %d/%d", next.StreakCount, next.StreakCoins)
	}
}

func TestCompute_History(t *testing.T) {
	res, err := Compute(sampleRecord(), "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	next := res.Next

	if len(next.RepsHistory) != 1 {
		t.Fatalf("repsHistory = %+v, want one entry", next.RepsHistory)
	}
	reps := next.RepsHistory[0]
	if reps.Date != "2024-03-01" || reps.CompletedCount != 1 || reps.TotalCount != 2 {
		t.Errorf("reps entry = %+v", reps)
	}
	if len(reps.Items) != 1 || reps.Items[0].ID != "c1" {
		t.Errorf("reps items = %+v, want only committed c1", reps.Items)
	}

	if len(next.ScorecardHistory) != 1 {
		t.Fatalf("scorecardHistory = %+v", next.ScorecardHistory)
	}
	sc := next.ScorecardHistory[0]
	if sc.Score != "2/4" || sc.RepsScore != "1/2" || sc.WinsScore != "1/2" {
		t.Errorf("scorecard entry = %+v, want 2/4 (reps 1/2, wins 1/2)", sc)
	}

	if len(next.ReflectionHistory) != 1 || next.ReflectionHistory[0].ID != "ref-2024-03-01" {
		t.Errorf("reflectionHistory = %+v", next.ReflectionHistory)
	}
}

func TestCompute_EmptyReflectionNotRecorded(t *testing.T) {
	rec := sampleRecord()
	rec.EveningReflection = models.EveningReflection{Habits: map[string]bool{"read": true}}

	res, err := Compute(rec, "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(res.Next.ReflectionHistory) != 0 {
		t.Errorf("reflectionHistory = %+v, want empty", res.Next.ReflectionHistory)
	}
}

func TestCompute_Policies(t *testing.T) {
	tests := []struct {
		policy constants.CommitmentPolicy
		want   []string
	}{
		{constants.CommitmentsClear, nil},
		{constants.CommitmentsPreservePending, []string{"c2"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			res, err := Compute(sampleRecord(), "2024-03-01", "2024-03-02", tt.policy, fixedNow, constants.SourceTimeTravel)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			var got []string
			for _, c := range res.Next.ActiveCommitments {
				got = append(got, c.ID)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("commitments = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompute_Idempotent(t *testing.T) {
	rec := sampleRecord()
	a, err := Compute(rec, "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	b, err := Compute(rec, "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Compute is not deterministic for identical inputs")
	}
	if !reflect.DeepEqual(rec, sampleRecord()) {
		t.Error("Compute mutated its input")
	}
}

func TestCompute_UpsertsExistingHistory(t *testing.T) {
	rec := sampleRecord()
	rec.RepsHistory = []models.RepsHistoryEntry{
		{Date: "2024-03-01", CompletedCount: 0, TotalCount: 2},
		{Date: "2024-02-28", CompletedCount: 1, TotalCount: 1},
	}

	res, err := Compute(rec, "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	got := res.Next.RepsHistory
	if len(got) != 2 {
		t.Fatalf("repsHistory = %+v, want 2 entries", got)
	}
	if got[0].Date != "2024-02-28" || got[1].Date != "2024-03-01" || got[1].CompletedCount != 1 {
		t.Errorf("repsHistory = %+v, want sorted with 03-01 replaced", got)
	}
}

func TestCompute_RejectsBackward(t *testing.T) {
	for _, dates := range [][2]string{{"2024-03-02", "2024-03-01"}, {"2024-03-01", "2024-03-01"}} {
		if _, err := Compute(sampleRecord(), dates[0], dates[1], constants.CommitmentsClear, fixedNow, constants.SourceLazyClient); err == nil {
			t.Errorf("Compute(%s -> %s) succeeded, want error", dates[0], dates[1])
		}
	}
	_, err := Compute(sampleRecord(), "yesterday", "2024-03-01", constants.CommitmentsClear, fixedNow, constants.SourceLazyClient)
	if apperrors.KindOf(err) != apperrors.KindDataShape {
		t.Errorf("bad date kind = %v, want DataShape", apperrors.KindOf(err))
	}
}

func TestCompute_ArchiveSnapshot(t *testing.T) {
	rec := sampleRecord()
	res, err := Compute(rec, "2024-03-01", "2024-03-02", constants.CommitmentsClear, fixedNow, constants.SourceTimeTravel)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	a := res.Archive
	if a.Date != "2024-03-01" || a.RolloverSource != constants.SourceTimeTravel || !a.ArchivedAt.Equal(fixedNow) {
		t.Errorf("archive header = %s %s %s", a.Date, a.RolloverSource, a.ArchivedAt)
	}
	if !reflect.DeepEqual(a.MorningWins, rec.MorningWins) || len(a.OtherTasks) != 1 {
		t.Error("archive should hold the pre-rollover record unchanged")
	}
}

func TestEngine_Rollover(t *testing.T) {
	store := newMemStore()
	e := New(store, constants.CommitmentsClear, func() time.Time { return fixedNow })

	next, err := e.Rollover(context.Background(), "u1", sampleRecord(), "2024-03-01", "2024-03-02", constants.SourceLazyClient)
	if err != nil {
		t.Fatalf("Rollover failed: %v", err)
	}
	if next.Date != "2024-03-02" {
		t.Errorf("next.Date = %q", next.Date)
	}
	if want := []string{"archive:2024-03-01", "current:2024-03-02"}; !reflect.DeepEqual(store.calls, want) {
		t.Errorf("write order = %v, want %v", store.calls, want)
	}
	if store.current == nil || store.current.Date != "2024-03-02" {
		t.Errorf("stored current = %+v", store.current)
	}
}

func TestEngine_RolloverAlreadyApplied(t *testing.T) {
	store := newMemStore()
	e := New(store, constants.CommitmentsClear, func() time.Time { return fixedNow })

	rec := models.NewDailyPracticeRecord("2024-03-02")
	got, err := e.Rollover(context.Background(), "u1", rec, "2024-03-01", "2024-03-02", constants.SourceMidnight)
	if err != nil {
		t.Fatalf("Rollover failed: %v", err)
	}
	if got.Date != "2024-03-02" || len(store.calls) != 0 {
		t.Errorf("expected no writes, got %v", store.calls)
	}
}

func TestEngine_RolloverWriteFailures(t *testing.T) {
	boom := errors.New("unavailable")

	t.Run("archive", func(t *testing.T) {
		store := newMemStore()
		store.archiveErr = boom
		e := New(store, constants.CommitmentsClear, func() time.Time { return fixedNow })

		rec := sampleRecord()
		got, err := e.Rollover(context.Background(), "u1", rec, "2024-03-01", "2024-03-02", constants.SourceLazyClient)
		if !errors.Is(err, boom) || apperrors.KindOf(err) != apperrors.KindTransient {
			t.Fatalf("err = %v, want transient wrapping %v", err, boom)
		}
		if got.Date != "2024-03-01" || store.current != nil {
			t.Error("current must keep its stale date so the next trigger retries")
		}
	})

	t.Run("current", func(t *testing.T) {
		store := newMemStore()
		store.saveErr = boom
		e := New(store, constants.CommitmentsClear, func() time.Time { return fixedNow })

		_, err := e.Rollover(context.Background(), "u1", sampleRecord(), "2024-03-01", "2024-03-02", constants.SourceLazyClient)
		if apperrors.KindOf(err) != apperrors.KindTransient {
			t.Fatalf("err = %v, want transient", err)
		}
		if _, ok := store.archives["2024-03-01"]; !ok {
			t.Error("archive should already be written")
		}
	})
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    constants.CommitmentPolicy
		wantErr bool
	}{
		{"", constants.CommitmentsClear, false},
		{"clear", constants.CommitmentsClear, false},
		{"preserve-pending", constants.CommitmentsPreservePending, false},
		{"keep-all", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestComputeScorecard(t *testing.T) {
	sc := ComputeScorecard(sampleRecord())
	if sc.Reps.String() != "1/2" || sc.Win.String() != "1/2" || sc.Total().String() != "2/4" {
		t.Errorf("ComputeScorecard = %+v", sc)
	}
}
