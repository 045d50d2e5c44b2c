package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse(version string) HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunResponse represents a reconciliation run in API responses.
// Monetary totals are decimal strings.
type RunResponse struct {
	RunID       string `json:"run_id"`
	StartedAt   string `json:"started_at"`
	CompletedAt string `json:"completed_at,omitempty"`
	Status      string `json:"status"`

	TotalDue      string  `json:"total_due"`
	TotalReceived string  `json:"total_received"`
	TotalVariance string  `json:"total_variance"`
	MatchRate     float64 `json:"match_rate"`

	MatchedTransactions int `json:"matched_transactions"`
	TotalTransactions   int `json:"total_transactions"`
	RecordCount         int `json:"record_count"`

	Summary      string `json:"summary,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs       []RunResponse `json:"runs"`
	TotalCount int           `json:"total_count"`
	Limit      int           `json:"limit"`
	Offset     int           `json:"offset"`
}

// TransactionResponse is one matched (or orphan) transaction inside a
// record.
type TransactionResponse struct {
	SequenceID  string  `json:"sequence_id"`
	Date        string  `json:"date"`
	Amount      string  `json:"amount"`
	Description string  `json:"description,omitempty"`
	Reference   string  `json:"reference,omitempty"`
	Tier        string  `json:"tier,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
}

// RecordResponse represents one reconciliation record.
type RecordResponse struct {
	RecordID       string `json:"record_id"`
	Classification string `json:"classification"`

	InvoiceID string `json:"invoice_id,omitempty"`
	Tenant    string `json:"tenant,omitempty"`
	Period    string `json:"period,omitempty"`

	Due      string `json:"due"`
	Paid     string `json:"paid"`
	Variance string `json:"variance"`

	Flags        []string              `json:"flags,omitempty"`
	Transactions []TransactionResponse `json:"transactions"`
}

// RecordListResponse is returned when listing a run's records.
type RecordListResponse struct {
	Records    []RecordResponse `json:"records"`
	TotalCount int              `json:"total_count"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// ReconcileResponse is returned after a successful reconciliation run.
type ReconcileResponse struct {
	Run     RunResponse      `json:"run"`
	Records []RecordResponse `json:"records"`

	// Rows skipped in lenient mode, as "row N: cause" strings.
	BankRowErrors   []string `json:"bank_row_errors,omitempty"`
	LedgerRowErrors []string `json:"ledger_row_errors,omitempty"`
}

// SummaryResponse is returned by the run summary endpoint.
type SummaryResponse struct {
	RunID   string `json:"run_id"`
	Summary string `json:"summary"`
}

// StatsResponse is returned by the stats endpoint.
type StatsResponse struct {
	TotalRuns            int            `json:"total_runs"`
	CompletedRuns        int            `json:"completed_runs"`
	FailedRuns           int            `json:"failed_runs"`
	AverageMatchRate     float64        `json:"average_match_rate"`
	LastRunAt            string         `json:"last_run_at,omitempty"`
	ClassificationCounts map[string]int `json:"classification_counts"`
}
