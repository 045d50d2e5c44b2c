// Package report assembles classified records into a run report with
// totals, and proves the money adds up before anything is persisted.
package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/rules"
)

// InternalConsistencyError means the assembled totals do not balance.
// It indicates a bug in the engine, never bad input, and a run that
// produces one must not be persisted.
type InternalConsistencyError struct {
	VarianceTotal   decimal.Decimal
	ReceivedLessDue decimal.Decimal
}

func (e *InternalConsistencyError) Error() string {
	return fmt.Sprintf("conservation check failed: variance total %s does not equal received minus due %s",
		e.VarianceTotal, e.ReceivedLessDue)
}

// Totals are the monetary aggregates across every record in a report.
type Totals struct {
	Due      decimal.Decimal `json:"due"`
	Received decimal.Decimal `json:"received"`
	Variance decimal.Decimal `json:"variance"`
}

// Report is the final output of a reconciliation run.
type Report struct {
	// Records in canonical order: invoice records sorted by invoice id,
	// then orphan records sorted by transaction sequence id.
	Records []rules.Record `json:"records"`

	Totals Totals `json:"totals"`

	// Counts maps classification name to the number of records with it.
	Counts map[string]int `json:"counts"`

	// MatchRate is the fraction of transactions that matched an invoice.
	MatchRate float64 `json:"match_rate"`

	MatchedTransactions int `json:"matched_transactions"`
	TotalTransactions   int `json:"total_transactions"`
}

// Assemble orders the records canonically, computes the totals, and
// verifies conservation: the sum of record variances must equal total
// received minus total due, to the cent.
func Assemble(records []rules.Record) (*Report, error) {
	sorted := make([]rules.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.Orphan == nil) != (b.Orphan == nil) {
			return a.Orphan == nil
		}
		return a.RecordID < b.RecordID
	})

	totals := Totals{Due: decimal.Zero, Received: decimal.Zero, Variance: decimal.Zero}
	counts := make(map[string]int)
	matched, total := 0, 0

	for _, rec := range sorted {
		totals.Due = totals.Due.Add(rec.Due)
		totals.Variance = totals.Variance.Add(rec.Variance)
		counts[rec.Classification.String()]++

		if rec.Orphan != nil {
			totals.Received = totals.Received.Add(rec.Orphan.Amount)
			total++
			continue
		}
		for _, c := range rec.Contributions {
			totals.Received = totals.Received.Add(c.Transaction.Amount)
			matched++
			total++
		}
	}

	if want := totals.Received.Sub(totals.Due); !totals.Variance.Equal(want) {
		return nil, &InternalConsistencyError{
			VarianceTotal:   totals.Variance,
			ReceivedLessDue: want,
		}
	}

	rate := 0.0
	if total > 0 {
		rate = float64(matched) / float64(total)
	}

	return &Report{
		Records:             sorted,
		Totals:              totals,
		Counts:              counts,
		MatchRate:           rate,
		MatchedTransactions: matched,
		TotalTransactions:   total,
	}, nil
}
