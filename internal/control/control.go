// Package control exposes the extension's command table and status over a
// loopback HTTP API, so the Polyforge editor extension can drive the bridge
// instead of rendering its own panels.
package control

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/extension"
)

// DefaultAddr binds the control API to the loopback interface only.
const DefaultAddr = "127.0.0.1:5679"

// Server is the control API over one extension instance.
type Server struct {
	ext    *extension.Extension
	logger *log.Logger
	http   *http.Server
}

// commandView is the JSON shape of one command-table entry.
type commandView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	RequiresDeps bool   `json:"requires_deps"`
}

// errorView is the JSON error body: machine-readable code plus the user
// message, mirroring the CLI's reporting.
type errorView struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New builds an unstarted control server.
func New(ext *extension.Extension, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{ext: ext, logger: logger}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute)) // attach waits are long-running

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/commands", s.handleCommands)
		r.Post("/commands/{id}", s.handleRunCommand)
	})
	return r
}

// ListenAndServe runs the API until ctx is cancelled. addr defaults to
// DefaultAddr.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodePortInUse, err, "binding control API on %s", addr)
	}

	s.http = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("control API listening", "addr", ln.Addr().String())

	done := make(chan error, 1)
	go func() { done <- s.http.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-done:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ext.Status())
}

func (s *Server) handleCommands(w http.ResponseWriter, _ *http.Request) {
	commands := s.ext.Commands()
	views := make([]commandView, 0, len(commands))
	for _, cmd := range commands {
		views = append(views, commandView{
			ID:           cmd.ID,
			Title:        cmd.Title,
			Description:  cmd.Description,
			RequiresDeps: cmd.RequiresDeps,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleRunCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.ext.RunCommand(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"command": id, "result": "ok"})
		return
	}
	if errors.Expected(err) {
		// Already-listening and attach-timeout are outcomes, not failures.
		writeJSON(w, http.StatusOK, map[string]string{
			"command": id,
			"result":  "warning",
			"notice":  errors.UserMessage(err),
		})
		return
	}

	s.logger.Error("command failed", "command", id, "err", err)
	writeJSON(w, statusFor(err), errorView{
		Code:    string(errors.GetCode(err)),
		Message: errors.UserMessage(err),
	})
}

// statusFor maps command errors onto HTTP statuses: unknown command is 404,
// the dependency gate is 409, everything else is 500.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeDependencyNotFound:
		return http.StatusConflict
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidConfig,
		errors.ErrCodeInvalidPath, errors.ErrCodeInvalidPort, errors.ErrCodeInvalidPackage:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
