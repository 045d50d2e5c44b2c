package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rent-reconciliation-backend/internal/api/dto"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run HTTP requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns reconciliation runs, newest first.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := storage.RunFilters{
		Status: r.URL.Query().Get("status"),
		Limit:  ParseIntParam(r, "limit", 20),
		Offset: ParseIntParam(r, "offset", 0),
	}

	result, err := h.repo.ListRuns(filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:       make([]dto.RunResponse, 0, len(result.Runs)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, run := range result.Runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/runs/{id} - returns a single run by ID.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	run, err := h.repo.GetRun(runID)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// Delete handles DELETE /api/runs/{id} - removes a run and its records.
func (h *RunsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	err := h.repo.DeleteRun(runID)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toRunResponse converts a stored run to an API response.
func toRunResponse(run *storage.Run) dto.RunResponse {
	return dto.RunResponse{
		RunID:               run.RunID,
		StartedAt:           run.StartedAt,
		CompletedAt:         run.CompletedAt,
		Status:              run.Status,
		TotalDue:            run.TotalDue,
		TotalReceived:       run.TotalReceived,
		TotalVariance:       run.TotalVariance,
		MatchRate:           run.MatchRate,
		MatchedTransactions: run.MatchedTransactions,
		TotalTransactions:   run.TotalTransactions,
		RecordCount:         run.RecordCount,
		Summary:             run.Summary,
		ErrorMessage:        run.ErrorMessage,
	}
}
