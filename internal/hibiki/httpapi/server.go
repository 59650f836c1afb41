// Package httpapi exposes the Hibiki pipeline over HTTP: the SSE command
// endpoint, credential connect/disconnect, and health/status probes.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hibiki-ai/hibiki/common/trace"
	"github.com/hibiki-ai/hibiki/common/version"
	"github.com/hibiki-ai/hibiki/internal/hibiki/credentials"
	"github.com/hibiki-ai/hibiki/internal/hibiki/orchestrator"
	"github.com/hibiki-ai/hibiki/internal/hibiki/pipeline"
	"github.com/hibiki-ai/hibiki/internal/hibiki/stream"
)

// principalHeader carries the authenticated user id. Authentication itself
// is a deployment concern (reverse proxy, gateway); Hibiki trusts the
// header.
const principalHeader = "X-Hibiki-User"

// Server is the HTTP front of the pipeline.
type Server struct {
	addr      string
	pipeline  *orchestrator.Service
	creds     credentials.Store
	families  []string
	startedAt time.Time

	mux    *http.ServeMux
	server *http.Server
}

// New creates and configures the server without starting it.
func New(addr string, svc *orchestrator.Service, creds credentials.Store, families []string) *Server {
	s := &Server{
		addr:      addr,
		pipeline:  svc,
		creds:     creds,
		families:  families,
		startedAt: time.Now(),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/command", s.handleCommand)
	s.mux.HandleFunc("/api/credentials/connect", s.handleConnect)
	s.mux.HandleFunc("/api/credentials/disconnect", s.handleDisconnect)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

// ServeHTTP implements http.Handler so the server can be tested with
// httptest without a live listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start begins listening in the background. It blocks until the listener
// is established so the caller knows the port is open.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.addr, err)
	}

	s.server = &http.Server{
		Handler:     s,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: command responses are long-lived event streams.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop shuts the server down, allowing in-flight streams a short grace
// period.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		slog.Warn("http server shutdown error", "err", err)
	}
}

// commandRequest is the POST /api/command body.
type commandRequest struct {
	Command        string                  `json:"command"`
	HandlerModelID string                  `json:"handlerModelId,omitempty"`
	SessionID      string                  `json:"sessionId,omitempty"`
	Mode           string                  `json:"mode,omitempty"`
	Speed          string                  `json:"speed,omitempty"`
	Confirmed      bool                    `json:"confirmed,omitempty"`
	ParsedCommand  *pipeline.ParsedCommand `json:"parsedCommand,omitempty"`
}

// handleCommand runs one pipeline request and streams its events as SSE
// frames: each event is `data: <json>` and the stream ends with the
// literal `data: [DONE]` frame.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return
	}
	principal := r.Header.Get(principalHeader)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "missing "+principalHeader+" header")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Command == "" && !(req.Confirmed && req.ParsedCommand != nil) {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := trace.WithTraceID(r.Context(), trace.GenerateID())
	ch := stream.NewChannel()
	go s.pipeline.Process(ctx, orchestrator.ProcessRequest{
		Principal:     principal,
		SessionID:     req.SessionID,
		Command:       req.Command,
		Model:         req.HandlerModelID,
		Mode:          orchestrator.Mode(req.Mode),
		Speed:         stream.Speed(req.Speed),
		Confirmed:     req.Confirmed,
		ParsedCommand: req.ParsedCommand,
	}, ch)

	// Drain the channel to the very end even when the client goes away:
	// the producer must never block on a dead transport, and execution and
	// persistence always run to completion.
	writable := true
	for ev := range ch.Events() {
		if !writable {
			continue
		}
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("httpapi: marshal event", "err", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			writable = false
			continue
		}
		flusher.Flush()
	}
	if writable {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}

// credentialRequest is the body of the connect/disconnect endpoints.
type credentialRequest struct {
	Service string `json:"service"`
	Token   string `json:"token,omitempty"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	principal, req, ok := s.credentialCall(w, r, true)
	if !ok {
		return
	}
	if err := s.creds.Set(r.Context(), principal, req.Service, req.Token); err != nil {
		slog.Error("httpapi: store credential", "service", req.Service, "err", err)
		writeError(w, http.StatusInternalServerError, "could not store credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	principal, req, ok := s.credentialCall(w, r, false)
	if !ok {
		return
	}
	if err := s.creds.Delete(r.Context(), principal, req.Service); err != nil {
		slog.Error("httpapi: delete credential", "service", req.Service, "err", err)
		writeError(w, http.StatusInternalServerError, "could not delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// credentialCall validates the shared parts of the credential endpoints.
func (s *Server) credentialCall(w http.ResponseWriter, r *http.Request, needToken bool) (string, *credentialRequest, bool) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "use POST")
		return "", nil, false
	}
	principal := r.Header.Get(principalHeader)
	if principal == "" {
		writeError(w, http.StatusUnauthorized, "missing "+principalHeader+" header")
		return "", nil, false
	}
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Service == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return "", nil, false
	}
	if needToken && req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return "", nil, false
	}
	return principal, &req, true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.GitCommit,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"commit":         version.GitCommit,
		"build_time":     version.BuildTime,
		"started_at":     s.startedAt,
		"uptime_seconds": time.Since(s.startedAt).Seconds(),
		"handlers":       s.families,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
