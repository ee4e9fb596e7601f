// Package api exposes the live record, streak and clock over HTTP with a
// server-sent event stream of changes.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/leaderreps/leaderreps/internal/clock"
	"github.com/leaderreps/leaderreps/internal/logger"
	"github.com/leaderreps/leaderreps/internal/models"
	"github.com/leaderreps/leaderreps/internal/transition"
)

// Archives is the read side of the archive store.
type Archives interface {
	GetArchive(ctx context.Context, userID, date string) (models.DailyLogArchive, error)
	ListArchives(ctx context.Context, userID, from, to string) ([]models.DailyLogArchive, error)
}

// ClockFactory builds the time-travel clock of one user. Offsets are never
// shared: one user's travel must not move another user's day.
type ClockFactory func(userID string) *clock.Clock

// DetectorFactory builds the detector of one user on that user's clock.
// The returned cleanup releases anything the detector subscribed to.
type DetectorFactory func(userID string, clk *clock.Clock) (*transition.Detector, func())

type Option func(*Server)

// WithBeforeTravel runs hook before every clock change, e.g. a backup.
// A failing hook aborts the change.
func WithBeforeTravel(hook func(ctx context.Context) error) Option {
	return func(s *Server) { s.beforeTravel = hook }
}

// WithAllowedOrigins restricts CORS; the default allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// session is the per-user state of the server.
type session struct {
	clock    *clock.Clock
	detector *transition.Detector
}

type Server struct {
	clocks       ClockFactory
	archives     Archives
	factory      DetectorFactory
	secret       []byte
	beforeTravel func(ctx context.Context) error
	origins      []string

	// ctx bounds the detector loops started for users.
	ctx context.Context

	mu       sync.Mutex
	sessions map[string]*session
	cleanups []func()
}

func NewServer(ctx context.Context, clocks ClockFactory, archives Archives, factory DetectorFactory, secret []byte, opts ...Option) *Server {
	s := &Server{
		clocks:   clocks,
		archives: archives,
		factory:  factory,
		secret:   secret,
		origins:  []string{"*"},
		ctx:      ctx,
		sessions: map[string]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session returns the user's clock and detector, starting the detector's
// run loop on first use.
func (s *Server) session(userID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ss, ok := s.sessions[userID]; ok {
		return ss
	}
	clk := s.clocks(userID)
	d, cleanup := s.factory(userID, clk)
	ss := &session{clock: clk, detector: d}
	s.sessions[userID] = ss
	s.cleanups = append(s.cleanups, cleanup)

	go func() {
		if err := d.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			logger.Error("Detector stopped", "user", userID, "error", err)
		}
	}()
	logger.Info("Started day-transition detector", "user", userID, "today", clk.Today(), "traveling", clk.Traveling())
	return ss
}

// Close releases every detector subscription.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cleanups {
		if c != nil {
			c()
		}
	}
	s.cleanups = nil
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(JWTAuth(s.secret))

		r.Route("/practice", func(r chi.Router) {
			r.Get("/current", s.getCurrent)
			r.Get("/streak", s.getStreak)
			r.Get("/archives", s.listArchives)
			r.Get("/archives/{date}", s.getArchive)
			r.Get("/events", s.events)
		})
		r.Route("/clock", func(r chi.Router) {
			r.Get("/", s.getClock)
			r.Post("/travel", s.travel)
			r.Post("/reset", s.reset)
		})
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("API listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
