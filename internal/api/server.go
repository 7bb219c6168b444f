package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/driver-dispatch/internal/backend"
	"github.com/example/driver-dispatch/internal/location"
	"github.com/example/driver-dispatch/internal/presenter"
	"github.com/example/driver-dispatch/internal/session"
)

// Server is the control surface the presentation layer talks to: session
// toggles, offer responses, a status snapshot, and a websocket event feed.
type Server struct {
	ctrl   *session.Controller
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(ctrl *session.Controller, logger *slog.Logger) *Server {
	s := &Server{ctrl: ctrl, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.mux.HandleFunc("/api/v1/online", s.handleOnline).Methods("POST")
	s.mux.HandleFunc("/api/v1/offline", s.handleOffline).Methods("POST")
	s.mux.HandleFunc("/api/v1/offer/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/offer/decline", s.handleDecline).Methods("POST")
	s.mux.HandleFunc("/api/v1/job/complete", s.handleCompleteJob).Methods("POST")
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	sid, err := s.ctrl.GoOnline(r.Context())
	if err != nil {
		if errors.Is(err, location.ErrPermissionDenied) {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sid})
}

func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request) {
	// the session is offline locally even when deregistration fails;
	// the error is informational
	if err := s.ctrl.GoOffline(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"warning": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	req, err := s.ctrl.Accept(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrAlreadyTaken):
			http.Error(w, "request already taken", http.StatusConflict)
		case errors.Is(err, presenter.ErrNoActiveOffer):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, presenter.ErrSessionEnded):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) handleDecline(w http.ResponseWriter, r *http.Request) {
	if !s.ctrl.Decline() {
		http.Error(w, "no active offer", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CompleteJob()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
