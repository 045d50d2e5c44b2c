package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
	"rent-reconciliation-backend/internal/infrastructure/storage"
	"rent-reconciliation-backend/internal/ingest"
)

const recordRowFormat = "%-16s %-21s %-18s %12s %12s %12s"

// PrintHeader prints the run banner.
func PrintHeader(w io.Writer, bankPath, ledgerPath string, strict bool) {
	mode := "lenient"
	if strict {
		mode = "strict"
	}
	fmt.Fprintf(w, "recon: %s vs %s (%s mode)\n\n", bankPath, ledgerPath, mode)
}

// PrintReport renders the record table with totals and the match rate.
func PrintReport(w io.Writer, rep *report.Report) {
	fmt.Fprintf(w, recordRowFormat+"\n", "RECORD", "CLASSIFICATION", "TENANT", "DUE", "PAID", "VARIANCE")
	fmt.Fprintln(w, strings.Repeat("-", 96))

	for _, rec := range rep.Records {
		line := fmt.Sprintf(recordRowFormat,
			rec.RecordID, rec.Classification, recordTenant(rec), rec.Due, rec.Paid, rec.Variance)
		if len(rec.Flags) > 0 {
			line += "  [" + joinFlags(rec.Flags) + "]"
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w, strings.Repeat("-", 96))
	fmt.Fprintf(w, "%-57s %12s %12s %12s\n", "TOTALS", rep.Totals.Due, rep.Totals.Received, rep.Totals.Variance)
	fmt.Fprintf(w, "\nMatched %d/%d transactions (%.1f%%)\n",
		rep.MatchedTransactions, rep.TotalTransactions, rep.MatchRate*100)

	if outcomes := countLine(rep.Counts); outcomes != "" {
		fmt.Fprintf(w, "Outcomes: %s\n", outcomes)
	}
}

// PrintRowErrors lists the rows skipped during ingestion.
func PrintRowErrors(w io.Writer, source string, errs []ingest.RowError) {
	if len(errs) == 0 {
		return
	}
	fmt.Fprintf(w, "\nSkipped %d %s %s:\n", len(errs), source, rowWord(len(errs)))
	for _, e := range errs {
		fmt.Fprintf(w, "  - %v\n", e)
	}
}

// PrintSummary prints the narrative summary between separators.
func PrintSummary(w io.Writer, text string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, text)
	fmt.Fprintln(w, strings.Repeat("=", 60))
}

// RunOutput is the machine-readable form of a finished run, printed in
// JSON mode instead of the console report.
type RunOutput struct {
	RunID               string               `json:"run_id"`
	MatchedTransactions int                  `json:"matched_transactions"`
	TotalTransactions   int                  `json:"total_transactions"`
	MatchRate           float64              `json:"match_rate"`
	Totals              report.Totals        `json:"totals"`
	Counts              map[string]int       `json:"counts"`
	Records             []*storage.RecordRow `json:"records"`
	SkippedBankRows     []string             `json:"skipped_bank_rows,omitempty"`
	SkippedLedgerRows   []string             `json:"skipped_ledger_rows,omitempty"`
	Summary             string               `json:"summary,omitempty"`
}

// NewRunOutput builds the JSON view of a report.
func NewRunOutput(runID string, rep *report.Report, bankErrs, ledgerErrs []ingest.RowError) RunOutput {
	out := RunOutput{
		RunID:               runID,
		MatchedTransactions: rep.MatchedTransactions,
		TotalTransactions:   rep.TotalTransactions,
		MatchRate:           rep.MatchRate,
		Totals:              rep.Totals,
		Counts:              rep.Counts,
		Records:             storage.RecordRowsFromReport(runID, rep),
	}
	for _, e := range bankErrs {
		out.SkippedBankRows = append(out.SkippedBankRows, e.Error())
	}
	for _, e := range ledgerErrs {
		out.SkippedLedgerRows = append(out.SkippedLedgerRows, e.Error())
	}
	return out
}

// PrintJSON writes the run output as indented JSON.
func PrintJSON(w io.Writer, out RunOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func recordTenant(rec rules.Record) string {
	if rec.Invoice != nil {
		return rec.Invoice.Tenant
	}
	return "-"
}

func joinFlags(flags []rules.Flag) string {
	names := make([]string, len(flags))
	for i, f := range flags {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

// countLine renders the classification counts in a stable order.
func countLine(counts map[string]int) string {
	var parts []string
	for _, c := range []rules.Classification{rules.Paid, rules.Partial, rules.Overpaid, rules.Unpaid, rules.UnrecognizedPayment} {
		if n := counts[c.String()]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, c))
		}
	}
	return strings.Join(parts, ", ")
}

func rowWord(n int) string {
	if n == 1 {
		return "row"
	}
	return "rows"
}
