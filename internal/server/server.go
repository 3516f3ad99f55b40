// Package server exposes live results, metrics and health over HTTP.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/rankflow/internal/sink"
	"github.com/bft-labs/rankflow/pkg/log"
)

// Config configures the HTTP surface.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer

	// WebSocket serves /ws when set.
	WebSocket http.Handler

	// Latest serves /latest when set.
	Latest *sink.Latest

	// Status reports the runner state on /healthz.
	Status func() string

	Logger log.Logger
}

// Server is the HTTP listener.
type Server struct {
	cfg    Config
	logger log.Logger

	mu  sync.Mutex
	srv *http.Server
	ln  net.Listener
}

// New creates a server; nothing listens until Start.
func New(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: log.With(cfg.Logger, log.String("component", "http")),
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Latest != nil {
		r.Get("/latest", s.handleLatest)
	}
	if s.cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	if s.cfg.WebSocket != nil {
		r.Handle("/ws", s.cfg.WebSocket)
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	if s.cfg.Status != nil {
		status = s.cfg.Status()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	res := s.cfg.Latest.Get()
	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, sink.NewPayload(res))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Start listens on Addr and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return errors.New("server already running")
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", log.Err(err))
		}
	}(s.srv)
	s.logger.Info("http listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, useful with port 0.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return s.cfg.Addr
	}
	return s.ln.Addr().String()
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
