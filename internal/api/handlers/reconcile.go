package handlers

import (
	"errors"
	"net/http"

	"rent-reconciliation-backend/internal/api/dto"
	"rent-reconciliation-backend/internal/application/service"
	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/recon"
	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/infrastructure/storage"
	"rent-reconciliation-backend/internal/ingest"
)

// maxUploadBytes caps the in-memory portion of a reconcile upload.
const maxUploadBytes = 32 << 20

// ReconcileHandler runs reconciliations from uploaded CSV files.
type ReconcileHandler struct {
	*Base
	svc *service.ReconciliationService
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(repo storage.Repository, svc *service.ReconciliationService) *ReconcileHandler {
	return &ReconcileHandler{
		Base: NewBase(repo),
		svc:  svc,
	}
}

// Run handles POST /api/reconcile - accepts a multipart form with a
// "bank" and a "ledger" CSV file, runs a reconciliation and returns
// the persisted run with its records.
//
// Optional form fields: strict (abort on the first bad row) and
// notify (post the run summary to the configured webhook).
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("expected multipart form with bank and ledger files"))
		return
	}

	bank, _, err := r.FormFile("bank")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("bank file is required"))
		return
	}
	defer func() { _ = bank.Close() }()

	ledgerFile, _, err := r.FormFile("ledger")
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("ledger file is required"))
		return
	}
	defer func() { _ = ledgerFile.Close() }()

	result, err := h.svc.Run(r.Context(), service.RunRequest{
		Bank:   bank,
		Ledger: ledgerFile,
		Strict: FormBool(r, "strict", false),
		Notify: FormBool(r, "notify", false),
	})
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toReconcileResponse(result))
}

// writeRunError maps reconciliation failures onto API error responses.
// Input and configuration problems are the caller's fault; a report
// that fails its own consistency checks is ours.
func (h *ReconcileHandler) writeRunError(w http.ResponseWriter, err error) {
	var consistencyErr *report.InternalConsistencyError
	if errors.As(err, &consistencyErr) {
		h.WriteError(w, http.StatusInternalServerError, dto.NewAPIError(dto.ErrCodeInconsistent, err.Error()))
		return
	}

	var validationErr *ledger.ValidationError
	var rowErr ingest.RowError
	var configErr *recon.ConfigurationError
	if errors.As(err, &validationErr) || errors.As(err, &rowErr) || errors.As(err, &configErr) {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
}

// toReconcileResponse converts a run result to an API response.
func toReconcileResponse(result *service.RunResult) dto.ReconcileResponse {
	rows := storage.RecordRowsFromReport(result.Run.RunID, result.Report)

	resp := dto.ReconcileResponse{
		Run:     toRunResponse(result.Run),
		Records: make([]dto.RecordResponse, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Records = append(resp.Records, toRecordResponse(row))
	}
	for _, rowErr := range result.BankRowErrors {
		resp.BankRowErrors = append(resp.BankRowErrors, rowErr.Error())
	}
	for _, rowErr := range result.LedgerRowErrors {
		resp.LedgerRowErrors = append(resp.LedgerRowErrors, rowErr.Error())
	}
	return resp
}
