package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rent-reconciliation-backend/internal/api/dto"
	"rent-reconciliation-backend/internal/application/service"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

// SummaryHandler serves generated run summaries.
type SummaryHandler struct {
	*Base
	svc *service.ReconciliationService
}

// NewSummaryHandler creates a new summary handler.
func NewSummaryHandler(repo storage.Repository, svc *service.ReconciliationService) *SummaryHandler {
	return &SummaryHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

// Get handles GET /api/runs/{id}/summary - returns the run's prose
// summary, generating and caching it on first request.
func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	text, err := h.svc.Summarize(r.Context(), runID)
	if errors.Is(err, storage.ErrNotFound) {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if errors.Is(err, service.ErrNoReport) {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.SummaryResponse{
		RunID:   runID,
		Summary: text,
	})
}
