package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pmontanari/screenops/internal/broadcast"
	"github.com/pmontanari/screenops/internal/store"
)

// handleRunEvents streams a run's output as Server-Sent Events: the
// stored output so far as one replay event, then live lines until the
// terminal event.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming not supported", nil)
		return
	}

	// Subscribe before snapshotting so no line can fall between the
	// replay and the live stream. A line landing in that window may
	// show up in both, which the tail view tolerates.
	token, ch := s.events.Subscribe(runID)
	defer s.events.Unsubscribe(runID, token)

	run, err := s.runs.GetRun(runID)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found", nil)
			return
		}
		s.logger.Error("failed to get run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve run", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if run.Output != "" {
		s.writeEvent(w, broadcast.Event{Type: broadcast.EventOutput, Data: run.Output})
	}

	if !run.Running() {
		exitCode := 0
		if run.ExitCode != nil {
			exitCode = *run.ExitCode
		}
		s.writeEvent(w, broadcast.Event{Type: broadcast.EventFinished, ExitCode: &exitCode})
		flusher.Flush()
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			s.writeEvent(w, ev)
			flusher.Flush()
			if ev.Type == broadcast.EventFinished {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w io.Writer, ev broadcast.Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("failed to encode event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
}
