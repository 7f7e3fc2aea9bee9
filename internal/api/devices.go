package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/rcp-core/internal/device"
	"github.com/nerrad567/rcp-core/internal/history"
	"github.com/nerrad567/rcp-core/internal/rcp"
)

// deviceResponse is the body of GET /devices/{id}.
type deviceResponse struct {
	ID     string       `json:"id"`
	Class  device.Class `json:"class"`
	Status rcp.Status   `json:"status"`
}

// acceptedResponse acknowledges a command handed to a device inbox.
// Acceptance is not application: the reconciler may still drop it.
type acceptedResponse struct {
	Accepted bool   `json:"accepted"`
	Target   string `json:"target"`
	Command  string `json:"command"`
}

// faultRequest is the body of POST /devices/{id}/fault.
type faultRequest struct {
	Codes []int `json:"codes"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deviceResponse{
		ID:     a.ID(),
		Class:  a.Class(),
		Status: a.Snapshot(),
	})
}

func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "status history is disabled")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	id := chi.URLParam(r, "id")
	entries, err := s.history.GetHistory(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("status history query failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to query status history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deviceId": id,
		"entries":  entries,
		"count":    len(entries),
	})
}

// handleCommand decodes the body with the same router table as MQTT and
// dispatches it. The path id may be "*".
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	name := chi.URLParam(r, "name")

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	if err := s.commands.Submit(id, name, payload); err != nil {
		s.writeCommandError(w, err)
		return
	}

	s.logger.Info("operator command submitted",
		"device_id", id,
		"command", name,
		"subject", r.Context().Value(ctxKeySubject),
	)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, Target: id, Command: name})
}

func (s *Server) handleFault(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req faultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := a.InjectFault(req.Codes); err != nil {
		s.writeCommandError(w, err)
		return
	}
	s.logger.Info("fault injected", "device_id", a.ID(), "codes", req.Codes)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, Target: a.ID(), Command: "fault"})
}

func (s *Server) handleClearFault(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := a.ClearFault(); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, Target: a.ID(), Command: "clear-fault"})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	a, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if err := a.Complete(); err != nil {
		s.writeCommandError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, acceptedResponse{Accepted: true, Target: a.ID(), Command: "complete"})
}

// lookup resolves the {id} path parameter, writing 404 when absent.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*device.Actor, bool) {
	id := chi.URLParam(r, "id")
	a, err := s.registry.Get(id)
	if err != nil {
		writeNotFound(w, "device not found: "+id)
		return nil, false
	}
	return a, true
}

// writeCommandError maps routing and dispatch errors to HTTP statuses.
func (s *Server) writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rcp.ErrMalformedPayload):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, rcp.ErrUnsupportedCommand):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrActorStopped):
		writeUnavailable(w, err.Error())
	default:
		s.logger.Error("command dispatch failed", "error", err)
		writeInternalError(w, "command dispatch failed")
	}
}
