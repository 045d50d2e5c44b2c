// Package rules turns matcher output into classified reconciliation
// records. Classification is a pure function of the matched-set
// contents: the same pairings produce the same records regardless of
// how the input rows were ordered.
package rules

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/matcher"
)

// Classification is the outcome label of one reconciliation record.
type Classification int

const (
	Paid Classification = iota
	Partial
	Overpaid
	Unpaid
	UnrecognizedPayment
)

// String returns the wire name of the classification.
func (c Classification) String() string {
	switch c {
	case Paid:
		return "PAID"
	case Partial:
		return "PARTIAL"
	case Overpaid:
		return "OVERPAID"
	case Unpaid:
		return "UNPAID"
	case UnrecognizedPayment:
		return "UNRECOGNIZED_PAYMENT"
	default:
		return "UNKNOWN"
	}
}

// Flag is an advisory marker for human review. Flags never change a
// classification and never trigger automatic action.
type Flag string

const (
	// FlagDuplicateSuspected marks records where two payments share an
	// amount and land within the duplicate window. A heuristic, not
	// proof; tenants do pay the same rent twice on purpose sometimes.
	FlagDuplicateSuspected Flag = "DUPLICATE_SUSPECTED"

	// FlagHighValue marks unrecognized payments in the top decile by
	// amount, the ones worth investigating first.
	FlagHighValue Flag = "HIGH_VALUE"
)

// Record is one classified reconciliation outcome: an invoice with the
// transactions that settled against it, or an orphan transaction that
// settled against nothing.
type Record struct {
	// RecordID is stable for a given input set: the invoice id for
	// invoice records, the transaction sequence id for orphans.
	RecordID       string
	Classification Classification
	Flags          []Flag

	Invoice       *ledger.Invoice     // nil for orphan records
	Contributions []matcher.Candidate // matched transactions with tier detail
	Orphan        *ledger.Transaction // set only for orphan records

	Due      decimal.Decimal
	Paid     decimal.Decimal
	Variance decimal.Decimal
}

// Config holds the classification thresholds.
type Config struct {
	// AmountEpsilon is the equality tolerance for paid-vs-due and for
	// duplicate amount comparison.
	AmountEpsilon decimal.Decimal

	// DuplicateWindow is how close in time two equal payments must be to
	// raise a duplicate suspicion.
	DuplicateWindow time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		AmountEpsilon:   decimal.NewFromFloat(0.01),
		DuplicateWindow: 48 * time.Hour,
	}
}

// Engine applies the classification rules. Immutable and safe for
// concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine builds an Engine. The config must already be validated.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Classify produces one record per invoice and one per orphan
// transaction. Record order here follows the match set; the assembler
// owns the canonical output order.
func (e *Engine) Classify(set matcher.MatchSet) []Record {
	records := make([]Record, 0, len(set.UnmatchedInvoices)+len(set.UnmatchedTransactions))

	// Group contributions by invoice, preserving first-seen order.
	byInvoice := make(map[string][]matcher.Candidate)
	var invoiceOrder []string
	for _, c := range set.Candidates {
		id := c.Invoice.InvoiceID
		if _, seen := byInvoice[id]; !seen {
			invoiceOrder = append(invoiceOrder, id)
		}
		byInvoice[id] = append(byInvoice[id], c)
	}

	for _, id := range invoiceOrder {
		records = append(records, e.classifyInvoice(byInvoice[id]))
	}
	for _, inv := range set.UnmatchedInvoices {
		records = append(records, unpaidRecord(inv))
	}
	records = append(records, e.orphanRecords(set.UnmatchedTransactions)...)

	return records
}

func (e *Engine) classifyInvoice(contribs []matcher.Candidate) Record {
	inv := contribs[0].Invoice
	paid := decimal.Zero
	for _, c := range contribs {
		paid = paid.Add(c.Transaction.Amount)
	}
	due := inv.AmountDue
	variance := paid.Sub(due)

	rec := Record{
		RecordID:      inv.InvoiceID,
		Invoice:       &inv,
		Contributions: contribs,
		Due:           due,
		Paid:          paid,
		Variance:      variance,
	}

	switch {
	case variance.Abs().LessThanOrEqual(e.cfg.AmountEpsilon):
		rec.Classification = Paid
	case paid.GreaterThan(due):
		rec.Classification = Overpaid
		if len(contribs) > 1 && e.hasDuplicatePair(contribs) {
			rec.Flags = append(rec.Flags, FlagDuplicateSuspected)
		}
	default:
		// Matched amounts are always positive, so what remains is
		// 0 < paid < due.
		rec.Classification = Partial
	}
	return rec
}

func unpaidRecord(inv ledger.Invoice) Record {
	return Record{
		RecordID:       inv.InvoiceID,
		Classification: Unpaid,
		Invoice:        &inv,
		Due:            inv.AmountDue,
		Paid:           decimal.Zero,
		Variance:       inv.AmountDue.Neg(),
	}
}

// orphanRecords classifies every unmatched transaction and attaches the
// advisory flags: duplicate suspicion among the orphans themselves, and
// high-value marking for the top decile.
func (e *Engine) orphanRecords(txns []ledger.Transaction) []Record {
	if len(txns) == 0 {
		return nil
	}

	highValueFloor, hasFloor := e.highValueFloor(txns)

	records := make([]Record, 0, len(txns))
	for i, t := range txns {
		txn := t
		rec := Record{
			RecordID:       txn.SequenceID,
			Classification: UnrecognizedPayment,
			Orphan:         &txn,
			Due:            decimal.Zero,
			Paid:           txn.Amount,
			Variance:       txn.Amount,
		}
		if e.hasOrphanTwin(txns, i) {
			rec.Flags = append(rec.Flags, FlagDuplicateSuspected)
		}
		if hasFloor && txn.Amount.GreaterThanOrEqual(highValueFloor) {
			rec.Flags = append(rec.Flags, FlagHighValue)
		}
		records = append(records, rec)
	}
	return records
}

// hasDuplicatePair reports whether any two contributions share an amount
// within epsilon and fall inside the duplicate window.
func (e *Engine) hasDuplicatePair(contribs []matcher.Candidate) bool {
	for i := 0; i < len(contribs); i++ {
		for j := i + 1; j < len(contribs); j++ {
			if e.looksDuplicate(contribs[i].Transaction, contribs[j].Transaction) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) hasOrphanTwin(txns []ledger.Transaction, idx int) bool {
	for i, t := range txns {
		if i == idx {
			continue
		}
		if e.looksDuplicate(txns[idx], t) {
			return true
		}
	}
	return false
}

func (e *Engine) looksDuplicate(a, b ledger.Transaction) bool {
	if a.Amount.Sub(b.Amount).Abs().GreaterThan(e.cfg.AmountEpsilon) {
		return false
	}
	gap := a.Date.Sub(b.Date)
	if gap < 0 {
		gap = -gap
	}
	return gap <= e.cfg.DuplicateWindow
}

// highValueFloor returns the 90th percentile (nearest rank) of positive
// orphan amounts. Below five positive orphans the decile is noise, so no
// floor applies.
func (e *Engine) highValueFloor(txns []ledger.Transaction) (decimal.Decimal, bool) {
	var amounts []decimal.Decimal
	for _, t := range txns {
		if t.Amount.IsPositive() {
			amounts = append(amounts, t.Amount)
		}
	}
	if len(amounts) < 5 {
		return decimal.Zero, false
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i].LessThan(amounts[j]) })

	rank := (len(amounts)*9 + 9) / 10 // ceil(0.9 * n)
	return amounts[rank-1], true
}
