package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/1kastner/sherpa/pkg/model"
)

// studyEvent is the payload streamed to SSE clients: the study row plus the
// live trial summary and rung snapshots.
type studyEvent struct {
	Study *model.Study `json:"study"`
	Rungs any          `json:"rungs"`
}

// handleSSEStudy streams study progress via Server-Sent Events.
// GET /api/v1/sse/studies/{id}
func (s *Server) handleSSEStudy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reqID := RequestIDFromContext(r.Context())

	h := s.handle(id)
	if h == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("study", id))
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	snapshot := func() studyEvent {
		h.mu.Lock()
		defer h.mu.Unlock()
		return studyEvent{Study: h.studyView(), Rungs: h.sched.RungSummaries()}
	}

	// Send initial state.
	ev := snapshot()
	if err := sendSSEEvent(w, flusher, "init", ev); err != nil {
		s.logger.Debug("sse client disconnected", "study", id, "error", err)
		return
	}

	// Poll for updates until the study finishes or the client disconnects.
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastSummary := ev.Study.TrialSummary

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			ev := snapshot()

			// Send update if any trial count moved.
			if ev.Study.TrialSummary != lastSummary {
				if err := sendSSEEvent(w, flusher, "update", ev); err != nil {
					s.logger.Debug("sse client disconnected", "study", id)
					return
				}
				lastSummary = ev.Study.TrialSummary
			} else {
				// Send heartbeat.
				fmt.Fprintf(w, ": heartbeat\n\n")
				flusher.Flush()
			}

			// Stop streaming once the study is terminal.
			if ev.Study.State.IsTerminal() {
				sendSSEEvent(w, flusher, "complete", ev)
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
	if err != nil {
		return err
	}

	flusher.Flush()
	return nil
}
