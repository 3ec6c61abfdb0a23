package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"taskviewer/pkg/task"
)

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var n task.NewTask
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&n); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	t, err := s.tasks.Add(r.Context(), principal(r.Context()), n)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskSearch(w http.ResponseWriter, r *http.Request) {
	fields := make(map[string]string)
	for key, vals := range r.URL.Query() {
		if len(vals) > 0 {
			fields[key] = vals[0]
		}
	}
	tasks, err := s.tasks.Search(r.Context(), principal(r.Context()), fields)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskOpen(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.Open(r.Context(), principal(r.Context()))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleUserTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ByUsername(r.Context(), principal(r.Context()), r.PathValue("username"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Get(r.Context(), principal(r.Context()), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	req, err := task.DecodeUpdate(r.Body)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	t, err := s.tasks.Update(r.Context(), principal(r.Context()), r.PathValue("id"), req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskTrack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Minutes *int `json:"minutes"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	if body.Minutes == nil {
		writeError(w, 400, "minutes is required")
		return
	}
	t, err := s.tasks.Track(r.Context(), principal(r.Context()), r.PathValue("id"), *body.Minutes)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskClose(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Close(r.Context(), principal(r.Context()), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskReplicate(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.Replicate(r.Context(), principal(r.Context()), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskAssign(w http.ResponseWriter, r *http.Request) {
	t, err := s.tasks.AssignTo(r.Context(), principal(r.Context()), r.PathValue("id"), r.PathValue("username"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.Delete(r.Context(), principal(r.Context()), r.PathValue("id")); err != nil {
		writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
