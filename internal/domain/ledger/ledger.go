// Package ledger defines the immutable input records for a reconciliation
// run: bank transactions and rent invoices. Records are validated at
// construction so the matching pipeline never sees a partially populated
// value.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one bank statement line. Credits are positive, refunds
// and reversals negative.
type Transaction struct {
	// SequenceID is the source-assigned stable id, unique within a run.
	SequenceID string

	Date        time.Time
	Amount      decimal.Decimal
	Description string

	// Reference is the bank's dedicated reference column, when present.
	// Often empty; references also appear inline in Description.
	Reference string
}

// Invoice is one expected rent obligation for a billing period.
type Invoice struct {
	InvoiceID string
	Tenant    string
	AmountDue decimal.Decimal
	DueDate   time.Time

	// Reference is the payment reference the tenant was asked to use.
	Reference string
}

// Period returns the billing period as a sortable year-month string.
func (i Invoice) Period() string {
	return i.DueDate.Format("2006-01")
}

// ValidationError reports a record rejected at the ingestion boundary.
type ValidationError struct {
	Entity string // "transaction" or "invoice"
	ID     string // sequence or invoice id when known
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("invalid %s %s: %s %s", e.Entity, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Entity, e.Field, e.Reason)
}

// Validate checks the invariants the matching pipeline depends on.
func (t Transaction) Validate() error {
	if t.SequenceID == "" {
		return &ValidationError{Entity: "transaction", Field: "sequence id", Reason: "is required"}
	}
	if t.Date.IsZero() {
		return &ValidationError{Entity: "transaction", ID: t.SequenceID, Field: "date", Reason: "is required"}
	}
	return nil
}

// Validate checks the invariants the matching pipeline depends on. The
// amount due must be positive; an obligation of zero or less is not a
// collectible invoice.
func (i Invoice) Validate() error {
	if i.InvoiceID == "" {
		return &ValidationError{Entity: "invoice", Field: "invoice id", Reason: "is required"}
	}
	if i.Tenant == "" {
		return &ValidationError{Entity: "invoice", ID: i.InvoiceID, Field: "tenant", Reason: "is required"}
	}
	if !i.AmountDue.IsPositive() {
		return &ValidationError{Entity: "invoice", ID: i.InvoiceID, Field: "amount due", Reason: "must be positive"}
	}
	if i.DueDate.IsZero() {
		return &ValidationError{Entity: "invoice", ID: i.InvoiceID, Field: "due date", Reason: "is required"}
	}
	return nil
}

// NewTransaction builds a validated Transaction.
func NewTransaction(seqID string, date time.Time, amount decimal.Decimal, description, reference string) (Transaction, error) {
	t := Transaction{
		SequenceID:  seqID,
		Date:        date,
		Amount:      amount,
		Description: description,
		Reference:   reference,
	}
	if err := t.Validate(); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// NewInvoice builds a validated Invoice.
func NewInvoice(invoiceID, tenant string, amountDue decimal.Decimal, dueDate time.Time, reference string) (Invoice, error) {
	i := Invoice{
		InvoiceID: invoiceID,
		Tenant:    tenant,
		AmountDue: amountDue,
		DueDate:   dueDate,
		Reference: reference,
	}
	if err := i.Validate(); err != nil {
		return Invoice{}, err
	}
	return i, nil
}
