package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/botique-hub/internal/hub"
)

// handleRegisterAgent handles POST /api/agents
func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var input hub.RegisterAgentInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	result, err := s.coordinator.RegisterAgent(r.Context(), &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// The API key appears in this response and nowhere else.
	respondJSON(w, http.StatusCreated, result)
}

// handleGetAgent handles GET /api/agents/{id}
func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agentID := mux.Vars(r)["id"]

	profile, err := s.coordinator.GetAgentProfile(r.Context(), agentID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, profile)
}
