package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"taskviewer/pkg/activity"
	"taskviewer/pkg/authority"
	"taskviewer/pkg/errs"
	"taskviewer/pkg/task"
	"taskviewer/pkg/user"
)

// Server is the HTTP API server.
type Server struct {
	tasks *task.Service
	users user.Store
	bus   *activity.Bus // optional; enables the live stream
	gate  authority.Gate
	mux   *http.ServeMux
}

// New creates a new Server.
func New(tasks *task.Service, users user.Store, bus *activity.Bus) *Server {
	s := &Server{
		tasks: tasks,
		users: users,
		bus:   bus,
		mux:   http.NewServeMux(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	// Tasks
	s.mux.Handle("POST /api/tasks", s.authed(s.handleTaskCreate))
	s.mux.Handle("GET /api/tasks", s.authed(s.handleTaskSearch))
	s.mux.Handle("GET /api/tasks/open", s.authed(s.handleTaskOpen))
	s.mux.Handle("GET /api/tasks/{id}", s.authed(s.handleTaskGet))
	s.mux.Handle("PUT /api/tasks/{id}", s.authed(s.handleTaskUpdate))
	s.mux.Handle("PATCH /api/tasks/{id}", s.authed(s.handleTaskTrack))
	s.mux.Handle("PATCH /api/tasks/{id}/close", s.authed(s.handleTaskClose))
	s.mux.Handle("POST /api/tasks/{id}/replicate", s.authed(s.handleTaskReplicate))
	s.mux.Handle("POST /api/tasks/{id}/assign/{username}", s.authed(s.handleTaskAssign))
	s.mux.Handle("DELETE /api/tasks/{id}", s.authed(s.handleTaskDelete))
	s.mux.Handle("GET /api/users/{username}/tasks", s.authed(s.handleUserTasks))

	// Activity
	s.mux.Handle("GET /api/tasks/{id}/activity", s.authed(s.handleTaskActivity))
	s.mux.Handle("GET /api/activity", s.authed(s.handleRecentActivity))
	s.mux.Handle("GET /api/activity/stream", s.authed(s.handleActivityStream))

	// System
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps err onto a status code. Persistence details stay in
// the log.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errs.ErrPermission):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrForeignKey):
		writeError(w, http.StatusConflict, err.Error())
	default:
		log.Printf("api: %s %s: %v", r.Method, r.URL.Path, err)
		var pe *errs.PersistenceError
		if errors.As(err, &pe) {
			writeError(w, http.StatusInternalServerError, pe.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
