package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/botique-hub/internal/hub"
	"github.com/botique-hub/internal/types"
)

// handleCreateJob handles POST /api/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var input hub.CreateJobInput
	if err := parseJSONBody(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	job, err := s.coordinator.CreateJob(r.Context(), &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, job)
}

// handleGetJob handles GET /api/jobs/{id}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.coordinator.GetJob(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleListJobs handles GET /api/jobs?status=...&limit=...&offset=...
// The listing is scoped to the authenticated agent.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	status := types.JobStatus(query.Get("status"))
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	jobs, err := s.coordinator.ListAgentJobs(r.Context(), apiKeyFromRequest(r), status, limit, offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

type submitPaymentRequest struct {
	TxHash string `json:"txHash"`
}

// handleSubmitPayment handles POST /api/jobs/{id}/payment
func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req submitPaymentRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	job, err := s.coordinator.SubmitPayment(r.Context(), jobID, req.TxHash)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleAcceptJob handles POST /api/jobs/{id}/accept
func (s *Server) handleAcceptJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.coordinator.AcceptJob(r.Context(), jobID, apiKeyFromRequest(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

type completeJobRequest struct {
	OutputData json.RawMessage `json:"outputData"`
	Status     string          `json:"status"`
}

// handleCompleteJob handles POST /api/jobs/{id}/complete
func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req completeJobRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	job, err := s.coordinator.CompleteJob(r.Context(), &hub.CompleteJobInput{
		JobID:      jobID,
		APIKey:     apiKeyFromRequest(r),
		OutputData: req.OutputData,
		StatusHint: types.JobStatus(req.Status),
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}
