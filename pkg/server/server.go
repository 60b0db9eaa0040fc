// Package server exposes the conversation and ticket APIs over HTTP,
// including a server-sent-events feed of store changes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ubitech/deskmate/pkg/agent"
	"github.com/ubitech/deskmate/pkg/bus"
	"github.com/ubitech/deskmate/pkg/gateway"
	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/session"
	"github.com/ubitech/deskmate/pkg/store"
)

// Server wires the orchestrator, store, and gateway behind HTTP routes.
type Server struct {
	responder *agent.Responder
	store     *store.Store
	gw        *gateway.Client
	sessions  *session.Manager
	logger    *logging.Logger

	// One conversation thread per session: overlapping chat requests for
	// the same session serialize here.
	turnMu sync.Map // session id -> *sync.Mutex

	httpServer *http.Server
}

// New builds a Server and its router. A nil sessions manager gets a fresh
// one; pass the process-wide manager so other entry points see the same
// sessions.
func New(responder *agent.Responder, st *store.Store, gw *gateway.Client, sessions *session.Manager, logger *logging.Logger) *Server {
	if sessions == nil {
		sessions = session.NewManager()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Server{
		responder: responder,
		store:     st,
		gw:        gw,
		sessions:  sessions,
		logger:    logger,
	}
	return s
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/tickets", s.handleListTickets)
		r.Get("/tickets/search", s.handleSearchTickets)
		r.Get("/tickets/{id}", s.handleGetTicket)
		r.Post("/tickets/refresh", s.handleRefresh)
		r.Post("/uploads", s.handleUpload)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/events", s.handleEvents)
	})
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// Run serves HTTP on bind until ctx is cancelled, then drains connections.
// It also bridges store events into the metrics counters.
func (s *Server) Run(ctx context.Context, bind string) error {
	sub, err := s.store.Subscribe(ctx, "deskmate.store.*", func(msg *bus.Message) {
		metricStoreEvents.WithLabelValues(msg.Subject).Inc()
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info(logging.CategoryServer, "listening", "http server up", map[string]any{
		"bind": listener.Addr().String(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sessionLock returns the per-session turn mutex.
func (s *Server) sessionLock(id string) *sync.Mutex {
	mu, _ := s.turnMu.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// decodeJSON reads a JSON request body with a size cap.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 16<<20))
	return dec.Decode(dst)
}

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":  err.Error(),
		"status": status,
	})
}
