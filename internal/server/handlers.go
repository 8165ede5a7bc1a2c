package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
	"github.com/timvw/command-center/internal/session"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NotificationsResponse is the body of GET /api/notifications.
type NotificationsResponse struct {
	Events      []events.Notification `json:"events"`
	UnreadCount int                   `json:"unreadCount"`
}

// OutputResponse is the body of GET /api/sessions/{id}/output.
type OutputResponse struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// InputRequest is the body of POST /api/sessions/{id}/input.
type InputRequest struct {
	Text string `json:"text"`
}

// KeysRequest is the body of POST /api/sessions/{id}/keys.
type KeysRequest struct {
	Keys []string `json:"keys"`
}

type okResponse struct {
	Success bool `json:"success"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, _ := s.catalog()
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	_, settings := s.catalog()
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.Sessions.ListAll(r.Context())
	if sessions == nil {
		sessions = []model.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var req model.LaunchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.KindValidation), err.Error())
		return
	}
	sess, err := s.Sessions.Launch(r.Context(), req)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	if s.Gate.Allows(events.TypeLaunched) {
		body := fmt.Sprintf("%s session started", sess.ProjectName)
		if sess.ElevatedMode {
			body += " (elevated mode)"
		}
		s.Events.Send(events.Notification{
			Type:        events.TypeLaunched,
			SessionID:   sess.ID,
			ProjectName: sess.ProjectName,
			Title:       "Session Launched",
			Body:        body,
			Icon:        "launch",
		})
		s.Metrics.RecordNotification(r.Context(), string(events.TypeLaunched))
	}
	s.Events.Broadcast(events.TopicLaunched, sess)
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Sessions.Kill(r.Context(), id); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.Events.Broadcast(events.TopicKilled, events.Killed{ID: id})
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Sessions.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OutputResponse{ID: sess.ID, Output: sess.LastOutput})
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.KindValidation), err.Error())
		return
	}
	if err := s.Sessions.SendInput(r.Context(), chi.URLParam(r, "id"), req.Text); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	var req KeysRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(session.KindValidation), err.Error())
		return
	}
	if err := s.Sessions.SendKeys(r.Context(), chi.URLParam(r, "id"), req.Keys...); err != nil {
		s.writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.Assessor == nil {
		writeError(w, http.StatusNotImplemented, "evaluator_disabled", "LLM evaluator is not configured")
		return
	}
	id := chi.URLParam(r, "id")
	sess, err := s.Sessions.Status(r.Context(), id)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	content, err := s.Sessions.Capture(r.Context(), id, 0)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	a, err := s.Assessor.Assess(r.Context(), sess, content)
	if err != nil {
		s.logger().Warn("evaluation failed", "id", id, "err", err)
		writeError(w, http.StatusBadGateway, "evaluator_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, NotificationsResponse{
		Events:      s.Events.History(),
		UnreadCount: s.Events.UnreadCount(),
	})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	s.Events.MarkAllRead()
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Events.MarkRead(id) {
		writeError(w, http.StatusNotFound, string(session.KindNotFound), "notification "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, okResponse{Success: true})
}

// writeSessionError maps a registry error kind to its HTTP status.
func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	kind := session.KindOf(err)
	status := statusForKind(kind)
	if kind == "" {
		kind = "internal_error"
	}
	if status >= http.StatusInternalServerError {
		s.logger().Warn("request failed", "kind", kind, "err", err)
	}
	writeError(w, status, string(kind), err.Error())
}

func statusForKind(kind session.Kind) int {
	switch kind {
	case session.KindValidation:
		return http.StatusBadRequest
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindDuplicate:
		return http.StatusConflict
	case session.KindCapacity:
		return http.StatusTooManyRequests
	case session.KindAdapter:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}
