// Package api exposes validation and generation over HTTP for serve mode:
// a small JSON API plus a WebSocket feed of run progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fabrica/fabrica/internal/schema"
	"github.com/fabrica/fabrica/internal/validate"
	"github.com/fabrica/fabrica/internal/ws"
)

// Server is the HTTP server for serve mode.
type Server struct {
	runner  *Runner
	hub     *ws.Hub
	logger  *slog.Logger
	port    int
	server  *http.Server
	devMode bool
}

// Option configures the API server.
type Option func(*Server)

// WithDevMode enables permissive CORS for frontend development.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.devMode = dev
	}
}

// WithHub sets the WebSocket hub.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// New creates a new API server.
func New(runner *Runner, logger *slog.Logger, port int, opts ...Option) *Server {
	s := &Server{
		runner: runner,
		logger: logger,
		port:   port,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", "port", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Handler builds the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/run", s.handleRunStatus)
	mux.HandleFunc("POST /api/run/abort", s.handleAbort)
	mux.HandleFunc("GET /api/dataset/{entity}", s.handleDataset)
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.HandleWebSocket)
	}

	var handler http.Handler = mux
	if s.devMode {
		handler = corsMiddleware(mux)
	}
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleValidate validates the schema YAML in the request body and returns
// the full report. 200 with valid=false on validation failure; 4xx only for
// malformed requests.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading body: %v", err)
		return
	}

	set, err := schema.ParseSet(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "parsing schemas: %v", err)
		return
	}

	v := &validate.Validator{
		Strict: r.URL.Query().Get("strict") == "true",
		Logger: s.logger,
	}
	report, err := v.Validate(r.Context(), set)
	var verr *validate.Error
	if err != nil && !errors.As(err, &verr) {
		writeError(w, http.StatusInternalServerError, "validation: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, ReportView(report))
}

type generateRequest struct {
	Schemas     string         `json:"schemas"`
	Rows        map[string]int `json:"rows,omitempty"`
	DefaultRows int            `json:"default_rows,omitempty"`
	Seed        int64          `json:"seed,omitempty"`
	Strict      bool           `json:"strict,omitempty"`
}

// handleGenerate validates, then starts a background run and returns its id.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "decoding request: %v", err)
		return
	}

	set, err := schema.ParseSet([]byte(req.Schemas))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "parsing schemas: %v", err)
		return
	}

	runID, report, err := s.runner.Start(set, RunOptions{
		Rows:        req.Rows,
		DefaultRows: req.DefaultRows,
		Seed:        req.Seed,
		Strict:      req.Strict,
	})
	if err != nil {
		var verr *validate.Error
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "schemas failed validation",
				"report": ReportView(report),
			})
			return
		}
		writeError(w, http.StatusConflict, "%v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id": runID,
		"report": ReportView(report),
	})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Status())
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	if !s.runner.Abort() {
		writeError(w, http.StatusConflict, "no run in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "aborted"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	set, ds, ok := s.runner.Dataset()
	if !ok {
		writeError(w, http.StatusNotFound, "no completed run")
		return
	}
	if _, ok := set.Get(entity); !ok {
		writeError(w, http.StatusNotFound, "unknown entity %q", entity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entity": entity,
		"rows":   ds.Rows(entity),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
