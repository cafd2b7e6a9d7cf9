package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"smartbudget/internal/metrics"
	"smartbudget/internal/session"
)

const (
	emptyInputMessage = "Please provide some input."
	apologyMessage    = "Sorry, there was an error processing your request."
	maxBodyBytes      = 64 << 10
)

// Processor answers one message of a conversation.
type Processor interface {
	Process(ctx context.Context, sessionID, text string) string
}

type chatRequest struct {
	Input     string `json:"input"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatServer exposes the chat endpoint, health check and Prometheus metrics.
type ChatServer struct {
	processor Processor
	metrics   *metrics.Metrics
	logger    *slog.Logger
	mux       *http.ServeMux
	server    *http.Server
}

// NewChatServer wires the routes. gatherer may be nil to skip /metrics.
func NewChatServer(processor Processor, metrics *metrics.Metrics, gatherer prometheus.Gatherer, logger *slog.Logger) *ChatServer {
	s := &ChatServer{
		processor: processor,
		metrics:   metrics,
		logger:    logger.With("component", "http"),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("POST /chat", s.handleChat)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return s
}

// ServeHTTP implements http.Handler.
func (s *ChatServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *ChatServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("http server: listen %s: %w", addr, err)
	}
	s.server = &http.Server{
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *ChatServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.metrics.Errors.WithLabelValues("http_decode").Inc()
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: emptyInputMessage})
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Response: emptyInputMessage})
		return
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = session.NewID()
	}
	s.metrics.IncomingMessages.WithLabelValues("http").Inc()

	reply, err := s.process(r.Context(), sessionID, input)
	if err != nil {
		s.logger.Error("chat request failed", "error", err, "session_id", sessionID)
		s.metrics.Errors.WithLabelValues("http").Inc()
		writeJSON(w, http.StatusInternalServerError, chatResponse{Response: apologyMessage, SessionID: sessionID})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Response: reply, SessionID: sessionID})
}

func (s *ChatServer) process(ctx context.Context, sessionID, input string) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("process panicked: %v", r)
		}
	}()
	return s.processor.Process(ctx, sessionID, input), nil
}

func (s *ChatServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
