package handlers_test

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-reconciliation-backend/internal/api/dto"
	"rent-reconciliation-backend/internal/api/handlers"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

func TestRecordsHandler_List(t *testing.T) {
	t.Run("returns a run's records", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RecordListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, 3, response.TotalCount)
		require.Len(t, response.Records, 3)

		first := response.Records[0]
		assert.Equal(t, "INV1001", first.RecordID)
		assert.Equal(t, "PAID", first.Classification)
		assert.Equal(t, "John Mthembu", first.Tenant)
		require.Len(t, first.Transactions, 1)
		assert.Equal(t, "TXN-1", first.Transactions[0].SequenceID)
		assert.Equal(t, "EXACT_REF", first.Transactions[0].Tier)
	})

	t.Run("filters by classification", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records?classification=PARTIAL", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RecordListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		require.Len(t, response.Records, 1)
		assert.Equal(t, "INV2001", response.Records[0].RecordID)
	})

	t.Run("filters by flag", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records?flag=HIGH_VALUE", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		var response dto.RecordListResponse
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		require.Len(t, response.Records, 1)
		assert.Equal(t, "TXN-5", response.Records[0].RecordID)
		assert.Contains(t, response.Records[0].Flags, "HIGH_VALUE")
	})

	t.Run("returns 404 for missing run", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing/records", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "missing"))
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("rejects unknown order_by field", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records?order_by=amount", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.List(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var response dto.APIError
		err := json.NewDecoder(rec.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, dto.ErrCodeBadRequest, response.Code)
	})
}

func TestRecordsHandler_DownloadCSV(t *testing.T) {
	t.Run("serves the full record set as csv", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records.csv", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.DownloadCSV(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename=records-run-1.csv", rec.Header().Get("Content-Disposition"))

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 4)

		assert.Equal(t, []string{
			"record_id", "classification", "invoice_id", "tenant", "period",
			"due", "paid", "variance", "flags", "transactions",
		}, rows[0])
		assert.Equal(t, []string{"INV1001", "PAID", "INV1001", "John Mthembu", "2025-01", "1500", "1500", "0", "", "TXN-1"}, rows[1])
		assert.Equal(t, []string{"TXN-5", "UNRECOGNIZED_PAYMENT", "", "", "", "0", "999", "999", "HIGH_VALUE", "TXN-5"}, rows[3])
	})

	t.Run("filters by classification", func(t *testing.T) {
		repo := storage.NewMockRepository()
		seedCompletedRun(t, repo, "run-1")

		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/run-1/records.csv?classification=UNRECOGNIZED_PAYMENT", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "run-1"))
		rec := httptest.NewRecorder()

		handler.DownloadCSV(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "TXN-5", rows[1][0])
	})

	t.Run("returns 404 for missing run", func(t *testing.T) {
		repo := storage.NewMockRepository()
		handler := handlers.NewRecordsHandler(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/runs/missing/records.csv", nil)
		req = req.WithContext(setChiURLParam(req.Context(), "id", "missing"))
		rec := httptest.NewRecorder()

		handler.DownloadCSV(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
