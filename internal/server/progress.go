package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Progress().State())
}

// handleProgressStream pushes the progress state as server-sent events. The
// current state is sent on connect, then every change, with a heartbeat
// while idle.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	tracker := s.pipe.Progress()
	updates, unsubscribe := tracker.Subscribe()
	defer unsubscribe()

	send := func(v any) bool {
		data, err := json.Marshal(v)
		if err != nil {
			log.Printf("Error encoding progress event: %v", err)
			return false
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send(tracker.State()) {
		return
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-updates:
			if !ok || !send(st) {
				return
			}
		case <-ticker.C:
			if !send(map[string]bool{"heartbeat": true}) {
				return
			}
		}
	}
}
