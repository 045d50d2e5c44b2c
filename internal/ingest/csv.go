// Package ingest reads bank statement and invoice CSV exports into
// ledger records. Column names vary by bank and billing system, so
// headers are matched against a set of known aliases rather than fixed
// positions.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/ledger"
)

// Options controls how parse failures are handled.
type Options struct {
	// Strict aborts on the first bad row instead of collecting it and
	// moving on.
	Strict bool
}

// RowError is a parse failure tied to a file row. Row numbers count
// from the top of the file, header included, so row 2 is the first
// data row.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// Column aliases seen across bank exports and billing systems. Headers
// are lowercased and space-collapsed to underscores before lookup.
var (
	txnIDAliases    = []string{"transaction_id", "txn_id", "sequence_id", "id"}
	txnDateAliases  = []string{"date", "date_paid", "transaction_date", "value_date"}
	txnAmtAliases   = []string{"amount", "amount_paid", "credit", "value"}
	txnDescAliases  = []string{"description", "narrative", "details", "memo"}
	txnRefAliases   = []string{"reference", "payment_reference", "ref"}
	invIDAliases    = []string{"invoice_id", "invoice", "id"}
	invTenantAlias  = []string{"tenant", "tenant_name", "name", "customer"}
	invAmtAliases   = []string{"amount_due", "monthly_rent", "rent", "amount"}
	invDueAliases   = []string{"due_date", "date_due", "billing_date"}
	invRefAliases   = []string{"reference", "payment_reference", "ref"}
)

var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
	"02 Jan 2006",
}

// ReadTransactions parses a bank statement CSV. In lenient mode bad
// rows are returned as RowErrors alongside the rows that parsed; in
// strict mode the first bad row aborts the read.
func ReadTransactions(r io.Reader, opts Options) ([]ledger.Transaction, []RowError, error) {
	rows, header, err := readRows(r)
	if err != nil {
		return nil, nil, err
	}

	idCol := header.find(txnIDAliases)
	dateCol, err := header.require("date", txnDateAliases)
	if err != nil {
		return nil, nil, err
	}
	amtCol, err := header.require("amount", txnAmtAliases)
	if err != nil {
		return nil, nil, err
	}
	descCol := header.find(txnDescAliases)
	refCol := header.find(txnRefAliases)

	var txns []ledger.Transaction
	var rowErrs []RowError
	for _, row := range rows {
		seqID := row.get(idCol)
		if seqID == "" {
			seqID = fmt.Sprintf("TXN-%d", row.num)
		}

		txn, err := parseTransaction(seqID, row, dateCol, amtCol, descCol, refCol)
		if err != nil {
			rowErr := RowError{Row: row.num, Err: err}
			if opts.Strict {
				return nil, nil, rowErr
			}
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		txns = append(txns, txn)
	}
	return txns, rowErrs, nil
}

// ReadInvoices parses an invoice export CSV with the same error
// handling as ReadTransactions.
func ReadInvoices(r io.Reader, opts Options) ([]ledger.Invoice, []RowError, error) {
	rows, header, err := readRows(r)
	if err != nil {
		return nil, nil, err
	}

	idCol, err := header.require("invoice id", invIDAliases)
	if err != nil {
		return nil, nil, err
	}
	tenantCol, err := header.require("tenant", invTenantAlias)
	if err != nil {
		return nil, nil, err
	}
	amtCol, err := header.require("amount due", invAmtAliases)
	if err != nil {
		return nil, nil, err
	}
	dueCol, err := header.require("due date", invDueAliases)
	if err != nil {
		return nil, nil, err
	}
	refCol := header.find(invRefAliases)

	var invoices []ledger.Invoice
	var rowErrs []RowError
	for _, row := range rows {
		inv, err := parseInvoice(row, idCol, tenantCol, amtCol, dueCol, refCol)
		if err != nil {
			rowErr := RowError{Row: row.num, Err: err}
			if opts.Strict {
				return nil, nil, rowErr
			}
			rowErrs = append(rowErrs, rowErr)
			continue
		}
		invoices = append(invoices, inv)
	}
	return invoices, rowErrs, nil
}

func parseTransaction(seqID string, row row, dateCol, amtCol, descCol, refCol int) (ledger.Transaction, error) {
	date, err := parseDate(row.get(dateCol))
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := parseAmount(row.get(amtCol))
	if err != nil {
		return ledger.Transaction{}, err
	}
	return ledger.NewTransaction(seqID, date, amount, row.get(descCol), row.get(refCol))
}

func parseInvoice(row row, idCol, tenantCol, amtCol, dueCol, refCol int) (ledger.Invoice, error) {
	due, err := parseDate(row.get(dueCol))
	if err != nil {
		return ledger.Invoice{}, err
	}
	amount, err := parseAmount(row.get(amtCol))
	if err != nil {
		return ledger.Invoice{}, err
	}
	return ledger.NewInvoice(row.get(idCol), row.get(tenantCol), amount, due, row.get(refCol))
}

// parseDate tries each known format in order.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseAmount handles the decorations bank exports add to numbers:
// currency prefixes and thousands separators.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("amount is required")
	}
	cleaned := strings.ToUpper(strings.TrimSpace(s))
	cleaned = strings.TrimPrefix(cleaned, "ZAR")
	cleaned = strings.TrimPrefix(cleaned, "R")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("unparseable amount %q", s)
	}
	return amount, nil
}

// row is one data row with its file position.
type row struct {
	num    int
	fields []string
}

// get returns the trimmed cell at col, or "" when the column is absent
// or the row is short.
func (r row) get(col int) string {
	if col < 0 || col >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[col])
}

// header maps normalized column names to their positions.
type header map[string]int

// find returns the first alias present, or -1.
func (h header) find(aliases []string) int {
	for _, a := range aliases {
		if col, ok := h[a]; ok {
			return col
		}
	}
	return -1
}

func (h header) require(name string, aliases []string) (int, error) {
	if col := h.find(aliases); col >= 0 {
		return col, nil
	}
	return 0, fmt.Errorf("no %s column found (accepted headers: %s)", name, strings.Join(aliases, ", "))
}

// readRows reads the whole file, returning data rows with their file
// row numbers and the normalized header map. Blank rows are skipped.
func readRows(r io.Reader) ([]row, header, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if err == io.EOF {
		return nil, nil, fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	h := make(header, len(first))
	for i, name := range first {
		if i == 0 {
			name = strings.TrimPrefix(name, "﻿")
		}
		h[normalizeHeader(name)] = i
	}

	var rows []row
	num := 1
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		num++
		if err != nil {
			return nil, nil, fmt.Errorf("reading row %d: %w", num, err)
		}
		if blankRow(fields) {
			continue
		}
		rows = append(rows, row{num: num, fields: fields})
	}
	return rows, h, nil
}

func normalizeHeader(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(name), "_")
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
