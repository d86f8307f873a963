package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/recall-labs/recall/internal/supermemory"
)

type saveMemoryRequest struct {
	Memory json.RawMessage `json:"memory"`
}

type saveMemoryResponse struct {
	Success bool                `json:"success"`
	Memory  *supermemory.Memory `json:"memory"`
}

// handleSaveMemory stores a memory for the signed-in user. Guests are
// rejected before any external call is made.
func (s *Server) handleSaveMemory(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(r)
	if !ok {
		s.writeError(w, apiError(ErrUnauthorized, SurfaceAPI, ""))
		return
	}
	if session.User.IsGuest() {
		s.writeError(w, apiError(ErrForbidden, SurfaceAuth, ""))
		return
	}

	var req saveMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
		return
	}
	var content string
	if err := json.Unmarshal(req.Memory, &content); err != nil || strings.TrimSpace(content) == "" {
		s.writeError(w, apiError(ErrBadRequest, SurfaceAPI, ""))
		return
	}

	if s.memory == nil {
		s.writeError(w, apiError(ErrOffline, SurfaceAPI, "Missing Supermemory API key"))
		return
	}

	stored, err := s.memory.Add(r.Context(), content, []string{supermemory.ContainerTag(session.User.ID)})
	if err != nil {
		s.logger.Warn("memory save failed", "user", session.User.ID, "err", err)
		s.writeError(w, apiError(ErrOffline, SurfaceAPI, err.Error()))
		return
	}

	s.writeJSON(w, saveMemoryResponse{Success: true, Memory: stored})
}
