package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/leaderreps/leaderreps/internal/constants"
	"github.com/leaderreps/leaderreps/internal/transition"
)

type eventPayload struct {
	Record   interface{}            `json:"record"`
	Streak   streakResponse         `json:"streak"`
	Rollover *transition.Transition `json:"rollover,omitempty"`
}

// events streams every change of the caller's live record as server-sent
// events until the client disconnects.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	d := s.session(UserFrom(r.Context())).detector
	updates, cancel := d.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if rec, err := d.Load(r.Context()); err == nil {
		writeEvent(w, transition.Update{Record: rec, Streak: d.GetStreak()})
	}
	flusher.Flush()

	keepAlive := time.NewTicker(constants.EventKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			writeEvent(w, u)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, u transition.Update) {
	kind := "update"
	if u.Rollover != nil {
		kind = "rollover"
	}
	data, err := json.Marshal(eventPayload{Record: u.Record, Streak: withMilestone(u.Streak), Rollover: u.Rollover})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
}
