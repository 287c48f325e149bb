// Package httpapi is the control plane: session lifecycle over plain HTTP,
// the websocket endpoint, health and metrics.
package httpapi

import (
	"collab-lab/contract"
	"collab-lab/domain/event"
	"collab-lab/errors"
	"collab-lab/observability"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type createSessionRequest struct {
	Name string `json:"name" validate:"max=128"`
}

type createSessionResponse struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status   string                      `json:"status"`
	Sessions int                         `json:"sessions"`
	Uptime   string                      `json:"uptime"`
	Process  *observability.ProcessStats `json:"process,omitempty"`
}

type Server struct {
	registry  contract.IRegistry
	gateway   http.Handler
	archive   contract.SnapshotStore
	validate  *validator.Validate
	startedAt time.Time
	log       *slog.Logger
}

func NewServer(log *slog.Logger, registry contract.IRegistry, gateway http.Handler, archive contract.SnapshotStore) *Server {
	return &Server{
		registry:  registry,
		gateway:   gateway,
		archive:   archive,
		validate:  validator.New(),
		startedAt: time.Now(),
		log:       log,
	}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/sessions", s.createSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions", s.listSessions).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}", s.deleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/sessions/{id}/leave", s.leaveSession).Methods(http.MethodPost)
	r.Handle("/sessions/{id}/ws", s.gateway).Methods(http.MethodGet)
	r.HandleFunc("/snapshots", s.listSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/snapshots/{id}", s.getSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/debug/inspect", s.inspect).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&body); err != nil {
			s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
			return
		}
	}
	if err := s.validate.Struct(body); err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err))
		return
	}

	summary, err := s.registry.CreateSession(body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: summary.ID,
		Name:      summary.Name,
		CreatedAt: summary.CreatedAt,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.ListSessions())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	handle, err := s.registry.GetSession(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Same frame as the one sent over the websocket on join.
	frame, err := event.Encode(handle.Snapshot())
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(frame)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteSession(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// leaveSession removes a participant without its websocket, e.g. from a
// beforeunload beacon.
func (s *Server) leaveSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if err := s.validate.Var(userID, "required,uuid4"); err != nil {
		s.writeError(w, fmt.Errorf("%w: userId must be a participant id", errors.ErrInvalidRequest))
		return
	}
	handle, err := s.registry.GetSession(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := handle.Leave(r.Context(), userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSnapshots(w http.ResponseWriter, r *http.Request) {
	archives, err := s.archive.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSnapshotViews(archives))
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	archive, err := s.archive.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSnapshotView(archive, true))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Sessions: len(s.registry.ListSessions()),
		Uptime:   time.Since(s.startedAt).Round(time.Second).String(),
	}
	if stats, err := observability.SelfStats(); err == nil {
		resp.Process = &stats
	} else {
		s.log.Debug("Process stats unavailable", "error", err)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
