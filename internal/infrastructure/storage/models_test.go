package storage

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/matcher"
	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
)

func TestRecordRowsFromReport(t *testing.T) {
	inv := ledger.Invoice{
		InvoiceID: "INV4001",
		Tenant:    "Sipho Nkosi",
		AmountDue: decimal.NewFromInt(1000),
		DueDate:   time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	txn := ledger.Transaction{
		SequenceID:  "TXN-3",
		Date:        time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromInt(1000),
		Description: "PAYMENT SIPHO N",
	}
	orphan := ledger.Transaction{
		SequenceID:  "TXN-9",
		Date:        time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
		Amount:      decimal.NewFromFloat(999.5),
		Description: "UNKNOWN SENDER",
	}

	rep, err := report.Assemble([]rules.Record{
		{
			RecordID:       "INV4001",
			Classification: rules.Paid,
			Invoice:        &inv,
			Contributions: []matcher.Candidate{{
				Transaction: txn,
				Invoice:     inv,
				Tier:        matcher.TierFuzzy,
				Confidence:  0.8333,
				Similarity:  83.33,
			}},
			Due:      inv.AmountDue,
			Paid:     txn.Amount,
			Variance: decimal.Zero,
		},
		{
			RecordID:       "TXN-9",
			Classification: rules.UnrecognizedPayment,
			Orphan:         &orphan,
			Flags:          []rules.Flag{rules.FlagHighValue},
			Due:            decimal.Zero,
			Paid:           orphan.Amount,
			Variance:       orphan.Amount,
		},
	})
	require.NoError(t, err)

	rows := RecordRowsFromReport("run-1", rep)
	require.Len(t, rows, 2)

	invoiceRow := rows[0]
	assert.Equal(t, "run-1", invoiceRow.RunID)
	assert.Equal(t, "INV4001", invoiceRow.RecordID)
	assert.Equal(t, "PAID", invoiceRow.Classification)
	assert.Equal(t, "Sipho Nkosi", invoiceRow.Tenant)
	assert.Equal(t, "2025-01", invoiceRow.Period)
	assert.Equal(t, "1000", invoiceRow.Due)
	assert.Equal(t, "0", invoiceRow.Variance)
	require.Len(t, invoiceRow.Transactions, 1)
	assert.Equal(t, "FUZZY", invoiceRow.Transactions[0].Tier)
	assert.Equal(t, "2025-01-05", invoiceRow.Transactions[0].Date)
	assert.InDelta(t, 83.33, invoiceRow.Transactions[0].Similarity, 0.001)

	orphanRow := rows[1]
	assert.Equal(t, "UNRECOGNIZED_PAYMENT", orphanRow.Classification)
	assert.Empty(t, orphanRow.InvoiceID)
	assert.Equal(t, []string{"HIGH_VALUE"}, orphanRow.Flags)
	assert.Equal(t, "999.5", orphanRow.Paid)
	require.Len(t, orphanRow.Transactions, 1)
	assert.Equal(t, "UNKNOWN SENDER", orphanRow.Transactions[0].Description)
	assert.Empty(t, orphanRow.Transactions[0].Tier)
}

func TestRun_CompleteAndFail(t *testing.T) {
	started := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	finished := time.Date(2025, 2, 1, 9, 0, 42, 0, time.UTC)

	rep, err := report.Assemble(nil)
	require.NoError(t, err)

	run := NewRun("run-1", started)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, "2025-02-01T09:00:00Z", run.StartedAt)

	run.Complete(rep, finished)
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, "2025-02-01T09:00:42Z", run.CompletedAt)
	assert.Equal(t, "0", run.TotalVariance)
	assert.Zero(t, run.RecordCount)

	failed := NewRun("run-2", started)
	failed.Fail("conservation check failed", finished)
	assert.Equal(t, RunStatusFailed, failed.Status)
	assert.Equal(t, "conservation check failed", failed.ErrorMessage)
}
