// Package export turns assembled reports into the artifacts people
// actually consume: CSV files for the bookkeeper and Slack
// notifications for the landlord.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

// Standard output filenames, as written by WriteReportFiles.
const (
	RecordsFilename    = "records.csv"
	ExceptionsFilename = "exceptions.csv"
	OrphansFilename    = "orphans.csv"
)

// WriteRecordsCSV writes every record in the report, one row per
// record, in the report's canonical order.
func WriteRecordsCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)

	header := []string{
		"record_id", "classification", "invoice_id", "tenant", "period",
		"due", "paid", "variance", "flags", "transactions",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range rep.Records {
		row := []string{
			rec.RecordID,
			rec.Classification.String(),
			invoiceID(rec),
			tenant(rec),
			period(rec),
			rec.Due.String(),
			rec.Paid.String(),
			rec.Variance.String(),
			joinFlags(rec.Flags),
			joinTxnIDs(rec),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteExceptionsCSV writes the invoice records that need follow-up:
// everything except clean PAID outcomes.
func WriteExceptionsCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)

	header := []string{
		"invoice_id", "tenant", "period", "classification",
		"due", "paid", "variance", "flags",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range rep.Records {
		if rec.Invoice == nil {
			continue
		}
		if rec.Classification == rules.Paid && len(rec.Flags) == 0 {
			continue
		}
		row := []string{
			rec.Invoice.InvoiceID,
			rec.Invoice.Tenant,
			rec.Invoice.Period(),
			rec.Classification.String(),
			rec.Due.String(),
			rec.Paid.String(),
			rec.Variance.String(),
			joinFlags(rec.Flags),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteOrphansCSV writes the unrecognized payments.
func WriteOrphansCSV(w io.Writer, rep *report.Report) error {
	cw := csv.NewWriter(w)

	header := []string{
		"sequence_id", "date", "amount", "description", "reference", "flags",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, rec := range rep.Records {
		if rec.Orphan == nil {
			continue
		}
		row := []string{
			rec.Orphan.SequenceID,
			rec.Orphan.Date.Format("2006-01-02"),
			rec.Orphan.Amount.String(),
			rec.Orphan.Description,
			rec.Orphan.Reference,
			joinFlags(rec.Flags),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteStoredRecordsCSV writes stored record rows with the same columns
// as WriteRecordsCSV, for serving CSV out of run history.
func WriteStoredRecordsCSV(w io.Writer, rows []*storage.RecordRow) error {
	cw := csv.NewWriter(w)

	header := []string{
		"record_id", "classification", "invoice_id", "tenant", "period",
		"due", "paid", "variance", "flags", "transactions",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		ids := make([]string, len(row.Transactions))
		for i, txn := range row.Transactions {
			ids[i] = txn.SequenceID
		}
		record := []string{
			row.RecordID,
			row.Classification,
			row.InvoiceID,
			row.Tenant,
			row.Period,
			row.Due,
			row.Paid,
			row.Variance,
			strings.Join(row.Flags, ";"),
			strings.Join(ids, ";"),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteReportFiles writes records.csv, exceptions.csv and orphans.csv
// into dir, creating it if needed.
func WriteReportFiles(dir string, rep *report.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	files := []struct {
		name  string
		write func(io.Writer, *report.Report) error
	}{
		{RecordsFilename, WriteRecordsCSV},
		{ExceptionsFilename, WriteExceptionsCSV},
		{OrphansFilename, WriteOrphansCSV},
	}

	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), rep, f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, rep *report.Report, write func(io.Writer, *report.Report) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(file, rep); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

func invoiceID(rec rules.Record) string {
	if rec.Invoice == nil {
		return ""
	}
	return rec.Invoice.InvoiceID
}

func tenant(rec rules.Record) string {
	if rec.Invoice == nil {
		return ""
	}
	return rec.Invoice.Tenant
}

func period(rec rules.Record) string {
	if rec.Invoice == nil {
		return ""
	}
	return rec.Invoice.Period()
}

func joinFlags(flags []rules.Flag) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

// joinTxnIDs lists the transaction ids behind a record, semicolon
// separated.
func joinTxnIDs(rec rules.Record) string {
	if rec.Orphan != nil {
		return rec.Orphan.SequenceID
	}
	ids := make([]string, len(rec.Contributions))
	for i, c := range rec.Contributions {
		ids[i] = c.Transaction.SequenceID
	}
	return strings.Join(ids, ";")
}
