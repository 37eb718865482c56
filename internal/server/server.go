// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jeranaias/searchchat/internal/stream"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:8000"

	// MaxMessageLength bounds the decoded message path segment, in bytes.
	MaxMessageLength = 8192
)

// ============================================================================
// SERVER
// ============================================================================

// Options configures the demo backend.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:8000".
	Addr string

	// WordDelay is the pause between streamed words of scripted replies.
	WordDelay time.Duration

	// RateLimit is requests per second per client IP (0 = unlimited).
	RateLimit float64

	// RateBurst is the per-IP bucket size.
	RateBurst int

	// MaxThreads caps in-memory conversations (0 = DefaultMaxThreads).
	MaxThreads int

	// Responder produces replies. Defaults to a ScriptedResponder.
	Responder Responder

	// Logger receives request and stream logs. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Server is the demo chat backend.
type Server struct {
	addr      string
	router    *mux.Router
	handler   http.Handler
	threads   *ThreadStore
	responder Responder
	logger    *zap.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates a Server from opts.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Responder == nil {
		opts.Responder = NewScriptedResponder(opts.WordDelay)
	}

	s := &Server{
		addr:      opts.Addr,
		router:    mux.NewRouter().UseEncodedPath(),
		threads:   NewThreadStore(opts.MaxThreads),
		responder: opts.Responder,
		logger:    opts.Logger,
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
		CORSMiddleware(DefaultCORSConfig()),
	}
	if opts.RateLimit > 0 {
		middlewares = append(middlewares,
			RateLimitMiddleware(NewIPRateLimiter(opts.RateLimit, opts.RateBurst), s.logger))
	}
	s.handler = Chain(middlewares...)(s.router)
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Threads returns the in-memory thread store.
func (s *Server) Threads() *ThreadStore {
	return s.threads
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	s.router.HandleFunc(stream.ChatStreamPath+"{message}", s.handleChatStream).Methods(http.MethodGet)
	s.router.HandleFunc(stream.HealthCheckPath, s.handleHealth).Methods(http.MethodGet, http.MethodHead)
}

// handleHealth handles GET and HEAD /health-check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChatStream handles GET /chat_stream/{message}.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	message, err := url.PathUnescape(mux.Vars(r)["message"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid message encoding")
		return
	}
	if len(message) > MaxMessageLength {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Message exceeds maximum length of %d bytes", MaxMessageLength))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", stream.ContentTypeEventStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ew := &eventWriter{w: w, flusher: flusher}
	ctx := r.Context()

	checkpoint := r.URL.Query().Get("checkpoint_id")
	isNew := checkpoint == ""
	if isNew {
		checkpoint = s.threads.Create()
		if err := ew.Send(stream.CheckpointEvent(checkpoint)); err != nil {
			s.logger.Debug("client went away", zap.Error(err))
			return
		}
	} else {
		s.threads.Ensure(checkpoint)
	}

	logger := s.logger.With(zap.String("checkpoint", checkpoint))
	history := s.threads.History(checkpoint)
	logger.Info("chat stream started",
		zap.Bool("new_thread", isNew),
		zap.Int("turn", len(history)+1))

	reply, err := s.responder.Respond(ctx, Request{Message: message, History: history}, ew.Send)
	switch {
	case err == nil:
		s.threads.Append(checkpoint, Turn{User: message, Assistant: reply})
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Debug("client disconnected mid-reply", zap.Int("events", ew.sent))
		return
	default:
		logger.Warn("responder failed", zap.Error(err))
	}

	if err := ew.Send(stream.EndEvent()); err != nil {
		return
	}
	if err := ew.SendNamed(stream.EndEventName, stream.EndEvent()); err != nil {
		return
	}
	logger.Debug("chat stream finished", zap.Int("events", ew.sent))
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// ListenAndServe listens on the configured address and serves until
// Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called. It returns nil after a
// clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("server started", zap.String("addr", ln.Addr().String()))
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.logger.Info("server shutting down")
	return srv.Shutdown(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"code":    status,
		},
	})
}
