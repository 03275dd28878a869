// Package web serves a read-only view of the session: status, the namespace
// and a stream of heartbeats and reload events.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/itsmostafa/funpad/internal/journal"
	"github.com/itsmostafa/funpad/internal/namespace"
	"github.com/itsmostafa/funpad/internal/reload"
)

// DefaultHeartbeat is the interval between heartbeat events.
const DefaultHeartbeat = time.Second

// Status reports engine state.
type Status interface {
	State() reload.State
	Cycles() int
	Path() string
}

// History lists journaled cycles.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Record, error)
}

// Options configures a Server.
type Options struct {
	Session string
	Version string
	Store   *namespace.Store
	Status  Status

	// Events defaults to a fresh Broadcaster
	Events *Broadcaster

	// History is optional; /history answers 404 without it
	History History

	// Heartbeat defaults to DefaultHeartbeat
	Heartbeat time.Duration

	Logger *slog.Logger
}

// Server is the web surface. None of its handlers write to the namespace or
// trigger a reload.
type Server struct {
	opts    Options
	mux     *http.ServeMux
	started time.Time

	srv      *http.Server
	listener net.Listener
}

// StatusResponse is the body of GET /.
type StatusResponse struct {
	Name    string    `json:"name"`
	Version string    `json:"version"`
	Session string    `json:"session"`
	Path    string    `json:"path"`
	State   string    `json:"state"`
	Cycles  int       `json:"cycles"`
	Locals  int       `json:"locals"`
	Started time.Time `json:"started"`
}

// Local is one namespace entry in GET /locals.
type Local struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Preview string `json:"preview"`
	Cycle   int    `json:"cycle"`
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("new web server: store is nil")
	}
	if opts.Status == nil {
		return nil, errors.New("new web server: status is nil")
	}
	if opts.Events == nil {
		opts.Events = NewBroadcaster()
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{opts: opts, mux: http.NewServeMux(), started: time.Now()}
	s.mux.HandleFunc("GET /{$}", s.handleStatus)
	s.mux.HandleFunc("GET /locals", s.handleLocals)
	s.mux.HandleFunc("GET /events", s.handleEvents)
	s.mux.HandleFunc("GET /history", s.handleHistory)
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Events returns the broadcaster feeding /events.
func (s *Server) Events() *Broadcaster {
	return s.opts.Events
}

// Start listens on addr and serves in the background. It returns the bound
// address, which differs from addr when addr asks for port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error("web server stopped", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Shutdown ends open event streams and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Events.Close()
	if s.srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Name:    "funpad",
		Version: s.opts.Version,
		Session: s.opts.Session,
		Path:    s.opts.Status.Path(),
		State:   s.opts.Status.State().String(),
		Cycles:  s.opts.Status.Cycles(),
		Locals:  s.opts.Store.Len(),
		Started: s.started,
	})
}

func (s *Server) handleLocals(w http.ResponseWriter, r *http.Request) {
	snap := s.opts.Store.Snapshot()
	out := make([]Local, len(snap))
	for i, e := range snap {
		out[i] = Local{Name: e.Name, Kind: e.Kind, Preview: e.Preview, Cycle: e.Cycle}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.opts.Logger.Error("failed to read history", "error", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []journal.Record{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleEvents streams server-sent events: a timestamp heartbeat every
// interval and a "reload" event for every finished cycle.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := s.opts.Events.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case now := <-ticker.C:
			if _, err := fmt.Fprintf(w, "data: %s\n\n", now.Format(time.RFC3339Nano)); err != nil {
				return
			}
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.opts.Logger.Warn("failed to encode reload event", "seq", ev.Seq, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.opts.Logger.Warn("failed to write response", "error", err)
	}
}
