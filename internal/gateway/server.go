// Package gateway is the Quill HTTP surface: bearer-token auth, the chat
// endpoint, and read-only listings over conversations and tasks.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dohr-michael/quill/internal/auth"
	"github.com/dohr-michael/quill/internal/chat"
	"github.com/dohr-michael/quill/internal/store"
)

// Server is the Quill gateway HTTP server.
type Server struct {
	httpServer   *http.Server
	orchestrator *chat.Orchestrator
	tasks        *store.TaskStore
	verifier     *auth.Verifier
	logger       *slog.Logger
	host         string
	port         int
}

// NewServer creates a new gateway server.
func NewServer(orch *chat.Orchestrator, tasks *store.TaskStore, verifier *auth.Verifier, host string, port int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		orchestrator: orch,
		tasks:        tasks,
		verifier:     verifier,
		logger:       logger,
		host:         host,
		port:         port,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Routes
	r.Get("/api/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/api/chat", s.handleChat)
		r.Get("/api/conversations", s.handleConversations)
		r.Get("/api/conversations/{id}/history", s.handleHistory)
		r.Get("/api/tasks", s.handleTasks)
	})

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("Quill gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
