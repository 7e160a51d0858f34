// Package api: HTTP handlers for orchestration session endpoints.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MossHollow/InterludeEngine/internal/models"
	"github.com/MossHollow/InterludeEngine/internal/session"
)

// sessionsHandler handles the collection endpoint (POST /sessions).
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.sessionsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.sessionsHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req session.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.sessionsHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.WorkID == "" {
		slog.Warn("Server.sessionsHandler: missing work_id")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: work_id"))
		return
	}
	if req.Emotion == "" {
		req.Emotion = models.EmotionNeutral
	}
	if !models.IsValidEmotionCategory(req.Emotion) {
		slog.Warn("Server.sessionsHandler: unknown emotion category", "emotion", req.Emotion)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown emotion category"))
		return
	}

	snap, err := s.mgr.Start(r.Context(), req)
	if err != nil {
		slog.Error("Server.sessionsHandler: failed to start session", "error", err, "workID", req.WorkID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start session"))
		return
	}

	slog.Info("Server.sessionsHandler: session started", "sessionID", snap.SessionID, "workID", req.WorkID)
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session started", snap))
}

// sessionHandler routes per-session endpoints:
//
//	GET    /sessions/{id}
//	DELETE /sessions/{id}
//	POST   /sessions/{id}/skip
//	POST   /sessions/{id}/proceed
//	GET    /sessions/{id}/events
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(path, "/")

	if len(segments) == 0 || segments[0] == "" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Missing session ID"))
		return
	}
	id := segments[0]

	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.getSessionHandler(w, r, id)
		case http.MethodDelete:
			s.teardownSessionHandler(w, r, id)
		default:
			w.Header().Set("Allow", "GET, DELETE")
			writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		}
		return
	}

	if len(segments) == 2 {
		switch segments[1] {
		case "skip":
			s.skipHandler(w, r, id)
			return
		case "proceed":
			s.proceedHandler(w, r, id)
			return
		case "events":
			s.eventsHandler(w, r, id)
			return
		}
	}

	writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown session endpoint"))
}

// getSessionHandler handles GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, id string) {
	slog.Debug("Server.getSessionHandler: fetching snapshot", "sessionID", id)
	snap, err := s.mgr.Snapshot(id)
	if err != nil {
		slog.Warn("Server.getSessionHandler: session not found", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(snap))
}

// skipHandler handles POST /sessions/{id}/skip.
func (s *Server) skipHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	honored, err := s.mgr.RequestSkip(id)
	if err != nil {
		slog.Warn("Server.skipHandler: session not found", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	slog.Info("Server.skipHandler: skip requested", "sessionID", id, "honored", honored)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"honored": honored}))
}

// proceedHandler handles POST /sessions/{id}/proceed.
func (s *Server) proceedHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	honored, err := s.mgr.AcknowledgeDialogue(id)
	if err != nil {
		slog.Warn("Server.proceedHandler: session not found", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	slog.Info("Server.proceedHandler: proceed requested", "sessionID", id, "honored", honored)
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"honored": honored}))
}

// teardownSessionHandler handles DELETE /sessions/{id}.
func (s *Server) teardownSessionHandler(w http.ResponseWriter, r *http.Request, id string) {
	err := s.mgr.Teardown(id)
	if err != nil {
		if errors.Is(err, models.ErrSessionNotFound) {
			slog.Warn("Server.teardownSessionHandler: session not found", "sessionID", id)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
			return
		}
		slog.Error("Server.teardownSessionHandler: teardown failed", "error", err, "sessionID", id)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to tear down session"))
		return
	}
	slog.Info("Server.teardownSessionHandler: session torn down", "sessionID", id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Session torn down", nil))
}

// eventsHandler handles GET /sessions/{id}/events as a server-sent-events
// stream. The stream ends when the session reaches a terminal phase, the
// session is torn down, or the client disconnects.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Server.eventsHandler: response writer does not support streaming")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming not supported"))
		return
	}

	events, unsubscribe, err := s.mgr.Subscribe(id)
	if err != nil {
		slog.Warn("Server.eventsHandler: session not found", "sessionID", id)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	slog.Debug("Server.eventsHandler: stream opened", "sessionID", id)
	for {
		select {
		case <-r.Context().Done():
			slog.Debug("Server.eventsHandler: client disconnected", "sessionID", id)
			return
		case ev, open := <-events:
			if !open {
				slog.Debug("Server.eventsHandler: stream closed", "sessionID", id)
				return
			}
			data, marshalErr := json.Marshal(ev)
			if marshalErr != nil {
				slog.Error("Server.eventsHandler: failed to marshal event", "error", marshalErr, "sessionID", id)
				continue
			}
			if _, writeErr := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); writeErr != nil {
				slog.Debug("Server.eventsHandler: write failed, closing stream", "error", writeErr, "sessionID", id)
				return
			}
			flusher.Flush()
		}
	}
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":        "healthy",
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"live_sessions": s.mgr.Count(),
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
