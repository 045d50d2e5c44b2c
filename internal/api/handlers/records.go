package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"rent-reconciliation-backend/internal/api/dto"
	"rent-reconciliation-backend/internal/export"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

// RecordsHandler serves the per-run reconciliation records.
type RecordsHandler struct {
	*Base
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo storage.Repository) *RecordsHandler {
	return &RecordsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs/{id}/records - returns a run's records.
//
// Supported query parameters: classification, flag, limit, offset,
// order_by (record_id, variance, paid) and order (asc, desc).
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("run ID is required"))
		return
	}

	if _, err := h.repo.GetRun(runID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.WriteError(w, http.StatusNotFound, dto.NotFoundError("run"))
			return
		}
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	orderBy := r.URL.Query().Get("order_by")
	switch orderBy {
	case "", "record_id", "variance", "paid":
	default:
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order_by must be one of record_id, variance, paid"))
		return
	}
	order := r.URL.Query().Get("order")
	switch order {
	case "", "asc", "desc":
	default:
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("order must be asc or desc"))
		return
	}

	filters := storage.RecordFilters{
		Classification: r.URL.Query().Get("classification"),
		Flag:           r.URL.Query().Get("flag"),
		Limit:          ParseIntParam(r, "limit", 50),
		Offset:         ParseIntParam(r, "offset", 0),
		OrderBy:        orderBy,
		OrderDesc:      order == "desc",
	}

	result, err := h.repo.ListRecords(runID, filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RecordListResponse{
		Records:    make([]dto.RecordResponse, 0, len(result.Records)),
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	}
	for _, rec := range result.Records {
		response.Records = append(response.Records, toRecordResponse(rec))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// DownloadCSV handles GET /api/runs/{id}/records.csv - streams the
// run's record set as a CSV attachment, optionally filtered by
// classification.
func (h *RecordsHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
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

	filters := storage.RecordFilters{
		Classification: r.URL.Query().Get("classification"),
		Limit:          run.RecordCount,
	}
	result, err := h.repo.ListRecords(runID, filters)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	var buf bytes.Buffer
	if err := export.WriteStoredRecordsCSV(&buf, result.Records); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=records-%s.csv", runID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// toRecordResponse converts a stored record to an API response.
func toRecordResponse(rec *storage.RecordRow) dto.RecordResponse {
	resp := dto.RecordResponse{
		RecordID:       rec.RecordID,
		Classification: rec.Classification,
		InvoiceID:      rec.InvoiceID,
		Tenant:         rec.Tenant,
		Period:         rec.Period,
		Due:            rec.Due,
		Paid:           rec.Paid,
		Variance:       rec.Variance,
		Flags:          rec.Flags,
		Transactions:   make([]dto.TransactionResponse, 0, len(rec.Transactions)),
	}
	for _, txn := range rec.Transactions {
		resp.Transactions = append(resp.Transactions, dto.TransactionResponse{
			SequenceID:  txn.SequenceID,
			Date:        txn.Date,
			Amount:      txn.Amount,
			Description: txn.Description,
			Reference:   txn.Reference,
			Tier:        txn.Tier,
			Similarity:  txn.Similarity,
		})
	}
	return resp
}
