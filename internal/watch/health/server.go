package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/vitality/internal/core/config"
	"github.com/vietddude/vitality/internal/infra/notify"
	"github.com/vietddude/vitality/internal/infra/storage"
)

// Test notification contents.
const (
	TestSubject = "Test Notification"
	TestBody    = "This is a test notification sent from vitality"
)

// SettingsStore is the live option store.
type SettingsStore interface {
	Snapshot() config.Settings
	Set(ctx context.Context, name string, raw any) (config.Settings, error)
	Unset(ctx context.Context, name string) (config.Settings, error)
	Version() uint64
}

// Notifier dispatches an alert through the sinks enabled by s.
type Notifier interface {
	Dispatch(ctx context.Context, s config.Settings, subject, body string) error
}

// SetRequest is the body of POST /config.
type SetRequest struct {
	Config string          `json:"config"`
	Val    json.RawMessage `json:"val"`
}

// Server provides HTTP endpoints for health monitoring and runtime options.
type Server struct {
	monitor  *Monitor
	store    SettingsStore
	notifier Notifier
	router   chi.Router
	server   *http.Server
}

// NewServer creates a new status server.
func NewServer(monitor *Monitor, store SettingsStore, notifier Notifier, port int) *Server {
	s := &Server{
		monitor:  monitor,
		store:    store,
		notifier: notifier,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/config", s.handleGetConfig)
	r.Post("/config", s.handleSetConfig)
	r.Delete("/config/{option}", s.handleUnsetConfig)
	r.Post("/notifications/test", s.handleTestNotification)

	s.router = r
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())

	status := http.StatusOK
	if report.SystemStatus == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	report.ConfigVersion = s.store.Version()
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot().Redacted())
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Config == "" || len(req.Val) == 0 {
		writeError(w, http.StatusBadRequest, "config and val are required")
		return
	}

	dec := json.NewDecoder(bytes.NewReader(req.Val))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid val: %v", err))
		return
	}

	settings, err := s.store.Set(r.Context(), req.Config, raw)
	switch {
	case errors.Is(err, config.ErrUnknownOption), errors.Is(err, config.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("Failed to set option", "option", req.Config, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("Option updated", "option", req.Config)
	writeJSON(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handleUnsetConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "option")

	settings, err := s.store.Unset(r.Context(), name)
	switch {
	case errors.Is(err, config.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrOptionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.Error("Failed to unset option", "option", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	slog.Info("Option override removed", "option", name)
	writeJSON(w, http.StatusOK, settings.Redacted())
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	err := s.notifier.Dispatch(r.Context(), s.store.Snapshot(), TestSubject, TestBody)
	switch {
	case errors.Is(err, notify.ErrNoSinks):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "success"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func readJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
