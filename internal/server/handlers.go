package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/pmontanari/screenops/internal/ops"
	"github.com/pmontanari/screenops/internal/orchestrator"
	"github.com/pmontanari/screenops/internal/store"
)

const (
	version      = "v0.1.0"
	defaultLimit = 100
	maxLimit     = 1000

	maxTemplateBytes = 64 * 1024
)

// handleHealth returns the health status of the server
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: version,
		Uptime:  s.Uptime(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleListCommands returns the operation descriptors the dashboard
// can launch.
func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ops.Descriptors())
}

// handleListRuns returns recent runs, newest first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := s.parseLimitParam(r)

	runs, err := s.runs.ListRuns(limit)
	if err != nil {
		s.logger.Error("failed to list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve runs", err)
		return
	}

	s.writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a specific run by ID
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}

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

	s.writeJSON(w, http.StatusOK, run)
}

// handleStartRun launches an operation as a new run
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if _, ok := ops.Lookup(req.CommandID); !ok {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown command %q", req.CommandID), nil)
		return
	}

	runID, err := s.runner.Start(req.CommandID, req.Params)
	if err != nil {
		s.logger.Error("failed to start run", "command_id", req.CommandID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to start run", err)
		return
	}

	s.writeJSON(w, http.StatusCreated, StartRunResponse{RunID: runID})
}

// handleStopRun cancels a running operation
func (s *Server) handleStopRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := s.parseRunID(w, r)
	if !ok {
		return
	}

	if err := s.runner.Stop(runID); err != nil {
		if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, orchestrator.ErrNotRunning) {
			s.writeError(w, http.StatusNotFound, "run is not running", nil)
			return
		}
		s.logger.Error("failed to stop run", "run_id", runID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to stop run", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// handleListTemplates returns the mail template filenames
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	names, err := s.templates.List()
	if err != nil {
		s.logger.Error("failed to list templates", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list templates", err)
		return
	}

	s.writeJSON(w, http.StatusOK, names)
}

// handleGetTemplate returns one mail template's text
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	content, err := s.templates.Read(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.writeError(w, http.StatusNotFound, "template not found", nil)
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, TemplateResponse{Name: name, Content: content})
}

// handlePutTemplate replaces one mail template's text
func (s *Server) handlePutTemplate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxTemplateBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body", err)
		return
	}

	if err := s.templates.Write(name, string(body)); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	s.writeJSON(w, http.StatusOK, TemplateResponse{Name: name, Content: string(body)})
}

// handleListSchedules returns per-schedule counters
func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scheduler not available", nil)
		return
	}

	s.writeJSON(w, http.StatusOK, s.scheduler.Schedules())
}

// parseRunID parses the {id} path segment, writing the error response
// itself on failure.
func (s *Server) parseRunID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	runID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || runID <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid run ID", nil)
		return 0, false
	}
	return runID, true
}

// parseLimitParam parses the limit query parameter
func (s *Server) parseLimitParam(r *http.Request) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		return defaultLimit
	}

	if limit > maxLimit {
		return maxLimit
	}

	return limit
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string, err error) {
	response := ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}

	if err != nil && s.logger != nil {
		s.logger.Error("API error", "status", status, "message", message, "error", err)
	}

	s.writeJSON(w, status, response)
}
