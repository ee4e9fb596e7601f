package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/storage"
	"github.com/leaderreps/leaderreps/internal/streak"
	"github.com/leaderreps/leaderreps/internal/utils"
)

type streakResponse struct {
	models.StreakState
	Milestone *models.Milestone `json:"milestone,omitempty"`
}

type currentResponse struct {
	Record models.DailyPracticeRecord `json:"record"`
	Streak streakResponse             `json:"streak"`
	Today  string                     `json:"today"`
}

type clockResponse struct {
	Now       time.Time `json:"now"`
	Today     string    `json:"today"`
	Timezone  string    `json:"timezone"`
	OffsetMs  int64     `json:"offsetMs"`
	Traveling bool      `json:"traveling"`
}

type travelRequest struct {
	To   string `json:"to"`
	Days int    `json:"days"`
}

type travelResponse struct {
	Clock      clockResponse              `json:"clock"`
	Boundaries []clock.Boundary           `json:"boundaries"`
	Record     models.DailyPracticeRecord `json:"record"`
}

func withMilestone(s models.StreakState) streakResponse {
	out := streakResponse{StreakState: s}
	if m, ok := streak.MilestoneFor(s.CurrentStreak); ok {
		out.Milestone = &m
	}
	return out
}

func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request) {
	ss := s.session(UserFrom(r.Context()))
	rec, err := ss.detector.Load(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "practice record unavailable, retry shortly")
		return
	}
	writeJSON(w, http.StatusOK, currentResponse{
		Record: rec,
		Streak: withMilestone(ss.detector.GetStreak()),
		Today:  ss.clock.Today(),
	})
}

func (s *Server) getStreak(w http.ResponseWriter, r *http.Request) {
	d := s.session(UserFrom(r.Context())).detector
	if _, err := d.Load(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "practice record unavailable, retry shortly")
		return
	}
	writeJSON(w, http.StatusOK, withMilestone(d.GetStreak()))
}

func (s *Server) listArchives(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	for _, v := range []string{from, to} {
		if v == "" {
			continue
		}
		if _, err := utils.ParseDate(v); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	archives, err := s.archives.ListArchives(r.Context(), UserFrom(r.Context()), from, to)
	if err != nil {
		logger.Error("Failed to list archives", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, archives)
}

func (s *Server) getArchive(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := utils.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.archives.GetArchive(r.Context(), UserFrom(r.Context()), date)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no archive for %s", date))
		return
	}
	if err != nil {
		logger.Error("Failed to read archive", "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func clockState(clk *clock.Clock) clockResponse {
	return clockResponse{
		Now:       clk.Now(),
		Today:     clk.Today(),
		Timezone:  clk.Location().String(),
		OffsetMs:  clk.Offset().Milliseconds(),
		Traveling: clk.Traveling(),
	}
}

func (s *Server) getClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, clockState(s.session(UserFrom(r.Context())).clock))
}

func (s *Server) travel(w http.ResponseWriter, r *http.Request) {
	var req travelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if (req.To == "") == (req.Days == 0) {
		writeError(w, http.StatusBadRequest, `exactly one of "to" or "days" is required`)
		return
	}

	ss := s.session(UserFrom(r.Context()))
	var target time.Time
	if req.To != "" {
		t, err := utils.ParseInstant(req.To, ss.clock.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		target = t
	} else {
		target = ss.clock.Now().AddDate(0, 0, req.Days)
	}

	s.changeClock(w, r, ss, func() ([]clock.Boundary, error) { return ss.clock.TravelTo(target) })
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	ss := s.session(UserFrom(r.Context()))
	s.changeClock(w, r, ss, func() ([]clock.Boundary, error) { return ss.clock.Reset(), nil })
}

// changeClock applies change to the caller's clock and finishes the
// caller's rollover batch before responding.
func (s *Server) changeClock(w http.ResponseWriter, r *http.Request, ss *session, change func() ([]clock.Boundary, error)) {
	if s.beforeTravel != nil {
		if err := s.beforeTravel(r.Context()); err != nil {
			logger.Error("Pre-travel hook failed", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to prepare time travel")
			return
		}
	}

	bounds, err := change()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := ss.detector.HandleTravel(r.Context(), bounds)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "rollover incomplete, it will resume on the next request")
		return
	}
	if bounds == nil {
		bounds = []clock.Boundary{}
	}
	writeJSON(w, http.StatusOK, travelResponse{Clock: clockState(ss.clock), Boundaries: bounds, Record: rec})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
