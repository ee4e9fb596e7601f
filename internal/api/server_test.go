package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/rollover"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/internal/transition"
)

var testSecret = []byte("test-signing-secret")

type fixture struct {
	srv   *httptest.Server
	store *storage.JSONStore
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation failed: %v", err)
	}
	wall := time.Date(2024, 3, 4, 10, 0, 0, 0, loc)

	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "leaderreps.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	clocks := func(string) *clock.Clock {
		return clock.New(loc, nil, clock.WithNow(func() time.Time { return wall }))
	}
	factory := func(userID string, clk *clock.Clock) (*transition.Detector, func()) {
		never := func(time.Duration) <-chan time.Time { return nil }
		engine := rollover.New(store, constants.CommitmentsClear, clk.Now)
		return transition.New(userID, store, engine, clk, transition.WithAfter(never)), nil
	}
	s := NewServer(ctx, clocks, store, factory, testSecret, opts...)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		s.Close()
	})
	return &fixture{srv: srv, store: store}
}

func (f *fixture) do(t *testing.T, method, path, body, user string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if user != "" {
		token, err := IssueToken(testSecret, user, time.Hour)
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRejections(t *testing.T) {
	f := newFixture(t)

	wrongSecret, _ := IssueToken([]byte("other"), "u1", time.Hour)
	expired, _ := IssueToken(testSecret, "u1", -time.Minute)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "u1", Issuer: constants.AppName,
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not bearer", "Basic abc"},
		{"wrong secret", "Bearer " + wrongSecret},
		{"expired", "Bearer " + expired},
		{"none alg", "Bearer " + noneAlg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/clock/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestGetCurrentRollsOverOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := models.NewDailyPracticeRecord("2024-03-01")
	stale.MorningWins[0] = models.MorningWin{ID: "w1", Text: "Ship it", Saved: true}
	if err := f.store.SaveCurrent(ctx, "u1", stale); err != nil {
		t.Fatalf("SaveCurrent failed: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/v1/practice/current", "", "u1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got currentResponse
	decode(t, resp, &got)

	if got.Record.Date != "2024-03-04" || got.Today != "2024-03-04" {
		t.Errorf("date = %s today = %s, want 2024-03-04", got.Record.Date, got.Today)
	}
	if w := got.Record.MorningWins[0]; w.Text != "Ship it" || !w.CarriedOver {
		t.Errorf("first win = %+v, want carried over", w)
	}

	if _, err := f.store.GetArchive(ctx, "u1", "2024-03-01"); err != nil {
		t.Errorf("archive for 2024-03-01 missing: %v", err)
	}
}

func TestUsersAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SaveCurrent(ctx, "u1", models.NewDailyPracticeRecord("2024-03-01")); err != nil {
		t.Fatalf("SaveCurrent failed: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/v1/practice/current", "", "u2")
	var got currentResponse
	decode(t, resp, &got)
	if got.Record.Date != "2024-03-04" {
		t.Errorf("u2 date = %s, want fresh defaults for today", got.Record.Date)
	}

	raw, err := f.store.GetCurrent(ctx, "u1")
	if err != nil || raw.Date != "2024-03-01" {
		t.Errorf("u1 record touched: %s, %v", raw.Date, err)
	}
}

func TestTravelIsPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, u := range []string{"u1", "u2"} {
		resp := f.do(t, http.MethodGet, "/api/v1/practice/current", "", u)
		resp.Body.Close()
	}

	resp := f.do(t, http.MethodPost, "/api/v1/clock/travel", `{"days": 3}`, "u1")
	var travelled travelResponse
	decode(t, resp, &travelled)
	if travelled.Record.Date != "2024-03-07" {
		t.Fatalf("u1 record = %s, want 2024-03-07", travelled.Record.Date)
	}

	var clk clockResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/clock/", "", "u2"), &clk)
	if clk.Traveling || clk.Today != "2024-03-04" {
		t.Errorf("u2 clock = %+v, want real time", clk)
	}

	var got currentResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/practice/current", "", "u2"), &got)
	if got.Record.Date != "2024-03-04" || got.Today != "2024-03-04" {
		t.Errorf("u2 record = %s today = %s, want 2024-03-04", got.Record.Date, got.Today)
	}
	// Give a stray detector time to act on a shared clock event.
	time.Sleep(50 * time.Millisecond)
	raw, err := f.store.GetCurrent(ctx, "u2")
	if err != nil || raw.Date != "2024-03-04" {
		t.Errorf("u2 stored record = %s, %v", raw.Date, err)
	}
	if list, err := f.store.ListArchives(ctx, "u2", "", ""); err != nil || len(list) != 0 {
		t.Errorf("u2 archives = %d, %v; want none", len(list), err)
	}
}

func TestStreak(t *testing.T) {
	f := newFixture(t)
	rec := models.NewDailyPracticeRecord("2024-03-04")
	for _, d := range []string{"2024-02-29", "2024-03-01"} {
		rec.RepsHistory = append(rec.RepsHistory, models.RepsHistoryEntry{Date: d, CompletedCount: 1, TotalCount: 1})
	}
	// Thursday, Friday and the live Monday commitment span the weekend.
	rec.ActiveCommitments = []models.Commitment{{ID: "c1", Text: "1:1", Status: models.RepCommitted}}
	if err := f.store.SaveCurrent(context.Background(), "u1", rec); err != nil {
		t.Fatalf("SaveCurrent failed: %v", err)
	}

	resp := f.do(t, http.MethodGet, "/api/v1/practice/streak", "", "u1")
	var got streakResponse
	decode(t, resp, &got)
	if got.CurrentStreak != 3 {
		t.Errorf("current = %d, want 3", got.CurrentStreak)
	}
	if got.Milestone == nil || got.Milestone.Threshold != 3 {
		t.Errorf("milestone = %+v, want threshold 3", got.Milestone)
	}
}

func TestArchives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, d := range []string{"2024-02-28", "2024-02-29", "2024-03-01"} {
		a := models.DailyLogArchive{DailyPracticeRecord: models.NewDailyPracticeRecord(d)}
		if err := f.store.MergeArchive(ctx, "u1", a); err != nil {
			t.Fatalf("MergeArchive failed: %v", err)
		}
	}

	resp := f.do(t, http.MethodGet, "/api/v1/practice/archives?from=2024-02-29", "", "u1")
	var list []models.DailyLogArchive
	decode(t, resp, &list)
	if len(list) != 2 || list[0].Date != "2024-02-29" {
		t.Errorf("archives = %d, first %+v", len(list), list)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/practice/archives?to=03-01", http.StatusBadRequest},
		{"/api/v1/practice/archives/2024-03-01", http.StatusOK},
		{"/api/v1/practice/archives/2024-03-02", http.StatusNotFound},
		{"/api/v1/practice/archives/yesterday", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp := f.do(t, http.MethodGet, tt.path, "", "u1")
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestTravelRunsBatchBeforeResponding(t *testing.T) {
	var hooked atomic.Int32
	f := newFixture(t, WithBeforeTravel(func(context.Context) error {
		hooked.Add(1)
		return nil
	}))

	resp := f.do(t, http.MethodGet, "/api/v1/practice/current", "", "u1")
	resp.Body.Close()

	resp = f.do(t, http.MethodPost, "/api/v1/clock/travel", `{"days": 3}`, "u1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got travelResponse
	decode(t, resp, &got)

	if len(got.Boundaries) != 3 {
		t.Errorf("boundaries = %v, want 3", got.Boundaries)
	}
	if got.Record.Date != "2024-03-07" || got.Clock.Today != "2024-03-07" || !got.Clock.Traveling {
		t.Errorf("after travel: record %s clock %+v", got.Record.Date, got.Clock)
	}
	if n := hooked.Load(); n != 1 {
		t.Errorf("before-travel hook ran %d times, want 1", n)
	}

	list, err := f.store.ListArchives(context.Background(), "u1", "", "")
	if err != nil || len(list) != 3 {
		t.Errorf("archives after travel = %d, %v; want one per day", len(list), err)
	}

	resp = f.do(t, http.MethodPost, "/api/v1/clock/reset", "", "u1")
	decode(t, resp, &got)
	if got.Clock.Traveling || got.Clock.Today != "2024-03-04" {
		t.Errorf("after reset clock = %+v", got.Clock)
	}
	if got.Record.Date != "2024-03-07" {
		t.Errorf("record after backward reset = %s, want it kept at 2024-03-07", got.Record.Date)
	}
}

func TestTravelValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		body string
	}{
		{"empty", `{}`},
		{"both", `{"to": "2024-03-05T09:00:00-05:00", "days": 1}`},
		{"bad instant", `{"to": "soon"}`},
		{"bad json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, "/api/v1/clock/travel", tt.body, "u1")
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
	var clk clockResponse
	decode(t, f.do(t, http.MethodGet, "/api/v1/clock/", "", "u1"), &clk)
	if clk.Traveling {
		t.Error("clock moved on a rejected request")
	}
}

func TestEventsStreamsRollovers(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/practice/events", nil)
	token, _ := IssueToken(testSecret, "u1", time.Hour)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events request failed: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if kind, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- kind
			}
		}
	}()

	next := func() string {
		select {
		case e := <-events:
			return e
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	if got := next(); got != "update" {
		t.Fatalf("initial event = %q, want update", got)
	}

	travel := f.do(t, http.MethodPost, "/api/v1/clock/travel", `{"days": 1}`, "u1")
	travel.Body.Close()

	// Plain updates may precede the rollover event.
	for got := next(); got != "rollover"; got = next() {
		if got != "update" {
			t.Fatalf("unexpected event %q", got)
		}
	}
}
