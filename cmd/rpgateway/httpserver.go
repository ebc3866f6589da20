package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/health"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/registration"
	"github.com/ethan/rp-webrtc-gateway/pkg/session"
)

// diagnosticServer exposes /healthz, /api/sessions and /api/devices (§6.8),
// grounded on the teacher's pkg/api.Server: the same ServeMux + logging
// middleware and response-writer-wrapper pattern (no CORS middleware),
// narrowed to a read-only diagnostic surface since this gateway has no
// browser viewer to serve.
type diagnosticServer struct {
	sessions *session.Manager
	registry *registration.Registry
	health   *healthRegistry
	log      *logger.Logger

	httpServer *http.Server
}

// healthRegistry maps a session id to its Tracker, the same way
// session.Manager maps (host,user) to a RemoteSession.
type healthRegistry struct {
	trackers map[string]*health.Tracker
}

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{trackers: make(map[string]*health.Tracker)}
}

func (h *healthRegistry) trackerFor(sessionId string) *health.Tracker {
	t, ok := h.trackers[sessionId]
	if !ok {
		t = health.NewTracker()
		h.trackers[sessionId] = t
	}
	return t
}

func newDiagnosticServer(sessions *session.Manager, registry *registration.Registry, healthReg *healthRegistry, log *logger.Logger) *diagnosticServer {
	return &diagnosticServer{sessions: sessions, registry: registry, health: healthReg, log: log}
}

func (s *diagnosticServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/devices", s.handleDevices)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withLogging(mux),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("starting diagnostic HTTP server", "address", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("diagnostic HTTP server error", "error", err)
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *diagnosticServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *diagnosticServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Info("HTTP request", "method", r.Method, "path", r.URL.Path, "status", wrapped.statusCode, "duration_ms", time.Since(start).Milliseconds())
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *diagnosticServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type sessionView struct {
	SessionId string             `json:"sessionId"`
	HostId    string             `json:"hostId"`
	UserId    string             `json:"userId"`
	State     session.State      `json:"state"`
	Health    health.HealthSnapshot `json:"health"`
}

func (s *diagnosticServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.All()
	views := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sessionView{
			SessionId: sess.SessionId,
			HostId:    sess.HostId,
			UserId:    sess.UserId,
			State:     sess.State,
			Health:    s.health.trackerFor(sess.SessionId).Snapshot(),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (s *diagnosticServer) handleDevices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.registry.All())
}
