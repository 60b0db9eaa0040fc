package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ubitech/deskmate/pkg/logging"
	"github.com/ubitech/deskmate/pkg/ticket"
)

type chatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	ToolUsed  bool   `json:"toolUsed"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, errors.New("message is required"))
		return
	}

	sess := s.sessions.GetOrCreate(req.SessionID)
	metricActiveSessions.Set(float64(s.sessions.Count()))

	mu := s.sessionLock(sess.ID())
	mu.Lock()
	reply := s.responder.Respond(r.Context(), sess, req.Message)
	mu.Unlock()

	metricChatTurns.WithLabelValues(boolLabel(reply.ToolUsed)).Inc()
	respondJSON(w, chatResponse{
		SessionID: sess.ID(),
		Text:      reply.Text,
		ToolUsed:  reply.ToolUsed,
	})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"tickets":        s.store.Tickets(),
		"syncing":        s.store.Syncing(),
		"lastError":      s.store.LastError(),
		"identifiedUser": s.store.IdentifiedUser(),
	})
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := s.store.GetByID(id)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("ticket "+id+" not found"))
		return
	}
	respondJSON(w, t)
}

func (s *Server) handleSearchTickets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	matches := s.store.Search(query)
	if matches == nil {
		matches = []ticket.Ticket{}
	}
	respondJSON(w, map[string]any{
		"tickets": matches,
		"count":   len(matches),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.store.Refresh(r.Context())
	respondJSON(w, map[string]any{
		"syncing":   s.store.Syncing(),
		"lastError": s.store.LastError(),
		"count":     len(s.store.Tickets()),
	})
}

type uploadRequest struct {
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
	FileData string `json:"fileData"` // base64
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.FileName == "" || req.FileData == "" {
		respondError(w, http.StatusBadRequest, errors.New("fileName and fileData are required"))
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.FileData)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("fileData must be base64"))
		return
	}

	url, err := s.gw.Upload(r.Context(), req.FileName, req.MimeType, data)
	if err != nil {
		metricUploads.WithLabelValues("error").Inc()
		s.logger.Warn(logging.CategoryServer, "upload_failed", req.FileName, map[string]any{
			"error": err.Error(),
		})
		respondError(w, http.StatusBadGateway, err)
		return
	}

	metricUploads.WithLabelValues("ok").Inc()
	respondJSON(w, map[string]any{"success": true, "url": url})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, ok := s.sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, errors.New("session "+id+" not found"))
		return
	}
	respondJSON(w, map[string]any{
		"sessionId":      sess.ID(),
		"turns":          sess.History(),
		"identifiedUser": s.store.IdentifiedUser(),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
