package storage

import (
	"encoding/json"
	"strings"
	"time"

	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run is one reconciliation run with its totals. Monetary values are
// stored as decimal strings so nothing is lost to float rounding.
type Run struct {
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

// NewRun creates a run in the running state.
func NewRun(runID string, startedAt time.Time) *Run {
	return &Run{
		RunID:         runID,
		StartedAt:     startedAt.UTC().Format(time.RFC3339),
		Status:        RunStatusRunning,
		TotalDue:      "0",
		TotalReceived: "0",
		TotalVariance: "0",
	}
}

// Complete fills the run's totals from an assembled report and marks it
// completed.
func (r *Run) Complete(rep *report.Report, completedAt time.Time) {
	r.Status = RunStatusCompleted
	r.CompletedAt = completedAt.UTC().Format(time.RFC3339)
	r.TotalDue = rep.Totals.Due.String()
	r.TotalReceived = rep.Totals.Received.String()
	r.TotalVariance = rep.Totals.Variance.String()
	r.MatchRate = rep.MatchRate
	r.MatchedTransactions = rep.MatchedTransactions
	r.TotalTransactions = rep.TotalTransactions
	r.RecordCount = len(rep.Records)
}

// Fail marks the run failed with the given reason.
func (r *Run) Fail(reason string, completedAt time.Time) {
	r.Status = RunStatusFailed
	r.CompletedAt = completedAt.UTC().Format(time.RFC3339)
	r.ErrorMessage = reason
}

// RecordRow is one reconciliation record as stored. The matched
// transactions are kept as a JSON column since they are always read
// back whole.
type RecordRow struct {
	ID             int64  `json:"id,omitempty"`
	RunID          string `json:"run_id"`
	RecordID       string `json:"record_id"`
	Classification string `json:"classification"`

	InvoiceID string `json:"invoice_id,omitempty"`
	Tenant    string `json:"tenant,omitempty"`
	Period    string `json:"period,omitempty"`

	Due      string `json:"due"`
	Paid     string `json:"paid"`
	Variance string `json:"variance"`

	Flags []string `json:"flags,omitempty"`

	Transactions []TransactionDetail `json:"transactions"`

	// Serialized forms for DB storage
	FlagsCSV string `json:"-"`
	TxnsJSON string `json:"-"`
}

// TransactionDetail is one matched (or orphan) transaction inside a
// stored record.
type TransactionDetail struct {
	SequenceID  string  `json:"sequence_id"`
	Date        string  `json:"date"`
	Amount      string  `json:"amount"`
	Description string  `json:"description,omitempty"`
	Reference   string  `json:"reference,omitempty"`
	Tier        string  `json:"tier,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
}

// Stats holds aggregate statistics across all runs
type Stats struct {
	TotalRuns            int            `json:"total_runs"`
	CompletedRuns        int            `json:"completed_runs"`
	FailedRuns           int            `json:"failed_runs"`
	AverageMatchRate     float64        `json:"average_match_rate"`
	LastRunAt            string         `json:"last_run_at,omitempty"`
	ClassificationCounts map[string]int `json:"classification_counts"`
}

// RecordRowsFromReport converts an assembled report into storable rows,
// preserving the report's canonical order.
func RecordRowsFromReport(runID string, rep *report.Report) []*RecordRow {
	rows := make([]*RecordRow, 0, len(rep.Records))
	for _, rec := range rep.Records {
		rows = append(rows, recordRowFromDomain(runID, rec))
	}
	return rows
}

func recordRowFromDomain(runID string, rec rules.Record) *RecordRow {
	row := &RecordRow{
		RunID:          runID,
		RecordID:       rec.RecordID,
		Classification: rec.Classification.String(),
		Due:            rec.Due.String(),
		Paid:           rec.Paid.String(),
		Variance:       rec.Variance.String(),
	}

	for _, f := range rec.Flags {
		row.Flags = append(row.Flags, string(f))
	}

	if rec.Invoice != nil {
		row.InvoiceID = rec.Invoice.InvoiceID
		row.Tenant = rec.Invoice.Tenant
		row.Period = rec.Invoice.Period()
	}

	if rec.Orphan != nil {
		row.Transactions = []TransactionDetail{{
			SequenceID:  rec.Orphan.SequenceID,
			Date:        rec.Orphan.Date.Format("2006-01-02"),
			Amount:      rec.Orphan.Amount.String(),
			Description: rec.Orphan.Description,
			Reference:   rec.Orphan.Reference,
		}}
	}
	for _, c := range rec.Contributions {
		row.Transactions = append(row.Transactions, TransactionDetail{
			SequenceID:  c.Transaction.SequenceID,
			Date:        c.Transaction.Date.Format("2006-01-02"),
			Amount:      c.Transaction.Amount.String(),
			Description: c.Transaction.Description,
			Reference:   c.Transaction.Reference,
			Tier:        c.Tier.String(),
			Similarity:  c.Similarity,
		})
	}

	return row
}

// encode fills the serialized columns from the structured fields.
func (r *RecordRow) encode() error {
	r.FlagsCSV = strings.Join(r.Flags, ",")

	txns := r.Transactions
	if txns == nil {
		txns = []TransactionDetail{}
	}
	data, err := json.Marshal(txns)
	if err != nil {
		return err
	}
	r.TxnsJSON = string(data)
	return nil
}

// decode fills the structured fields from the serialized columns.
func (r *RecordRow) decode() error {
	if r.FlagsCSV != "" {
		r.Flags = strings.Split(r.FlagsCSV, ",")
	}
	if r.TxnsJSON != "" {
		return json.Unmarshal([]byte(r.TxnsJSON), &r.Transactions)
	}
	return nil
}
