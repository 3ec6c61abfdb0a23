package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"taskviewer/pkg/authority"
)

func (s *Server) handleTaskActivity(w http.ResponseWriter, r *http.Request) {
	events, err := s.tasks.Activity(r.Context(), principal(r.Context()), r.PathValue("id"), queryInt(r, "limit", 100))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, events)
}

func (s *Server) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	events, err := s.tasks.RecentActivity(r.Context(), principal(r.Context()), queryInt(r, "limit", 50))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, 200, events)
}

// handleActivityStream pushes journal entries as server-sent events until
// the client goes away.
func (s *Server) handleActivityStream(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Check(principal(r.Context()), authority.Activity); err != nil {
		writeFailure(w, r, err)
		return
	}
	if s.bus == nil {
		writeError(w, 404, "activity stream disabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(200)
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case e := <-ch:
			data, err := json.Marshal(e)
			if err != nil {
				log.Printf("SSE marshal: %v", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, data)
			flusher.Flush()
		}
	}
}
