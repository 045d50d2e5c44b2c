package recon

import (
	"context"
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

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := New(DefaultConfig())
	require.NoError(t, err)
	return engine
}

func jan(day int) time.Time {
	return time.Date(2025, time.January, day, 0, 0, 0, 0, time.UTC)
}

func mustTxn(t *testing.T, seq string, date time.Time, amount float64, desc string) ledger.Transaction {
	t.Helper()
	txn, err := ledger.NewTransaction(seq, date, decimal.NewFromFloat(amount), desc, "")
	require.NoError(t, err)
	return txn
}

func mustInvoice(t *testing.T, id, tenant string, due float64, ref string) ledger.Invoice {
	t.Helper()
	inv, err := ledger.NewInvoice(id, tenant, decimal.NewFromFloat(due), jan(1), ref)
	require.NoError(t, err)
	return inv
}

func findRecord(t *testing.T, rep *report.Report, id string) rules.Record {
	t.Helper()
	for _, rec := range rep.Records {
		if rec.RecordID == id {
			return rec
		}
	}
	t.Fatalf("no record with id %s", id)
	return rules.Record{}
}

func TestEngine_InlineReferenceSettlesInvoice(t *testing.T) {
	engine := newTestEngine(t)

	rep, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{mustTxn(t, "TXN-1", jan(3), 1500, "EFT REF:INV1001 JOHN M")},
		[]ledger.Invoice{mustInvoice(t, "INV1001", "John Mthembu", 1500, "")},
	)
	require.NoError(t, err)

	require.Len(t, rep.Records, 1)
	rec := rep.Records[0]
	assert.Equal(t, rules.Paid, rec.Classification)
	assert.True(t, rec.Variance.IsZero())
	require.Len(t, rec.Contributions, 1)
	assert.Equal(t, matcher.TierExactRef, rec.Contributions[0].Tier)
	assert.Equal(t, 1.0, rec.Contributions[0].Confidence)
}

func TestEngine_TruncatedNamePartialPayment(t *testing.T) {
	engine := newTestEngine(t)

	rep, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{mustTxn(t, "TXN-2", jan(4), 800, "PAYMENT JANE D")},
		[]ledger.Invoice{mustInvoice(t, "INV2001", "Jane Dlamini", 1200, "INV2001")},
	)
	require.NoError(t, err)

	rec := findRecord(t, rep, "INV2001")
	assert.Equal(t, rules.Partial, rec.Classification)
	assert.True(t, rec.Variance.Equal(decimal.NewFromInt(-400)))
	require.Len(t, rec.Contributions, 1)
	assert.Equal(t, matcher.TierFuzzy, rec.Contributions[0].Tier)
	assert.InDelta(t, 80.0, rec.Contributions[0].Similarity, 0.0001)
}

func TestEngine_DuplicatePaymentFlagged(t *testing.T) {
	engine := newTestEngine(t)

	rep, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{
			mustTxn(t, "TXN-3", jan(5), 1000, "PAYMENT SIPHO N"),
			mustTxn(t, "TXN-4", jan(5), 1000, "PAYMENT SIPHO N"),
		},
		[]ledger.Invoice{mustInvoice(t, "INV4001", "Sipho Nkosi", 1000, "")},
	)
	require.NoError(t, err)

	rec := findRecord(t, rep, "INV4001")
	assert.Equal(t, rules.Overpaid, rec.Classification)
	assert.True(t, rec.Variance.Equal(decimal.NewFromInt(1000)))
	assert.Len(t, rec.Contributions, 2)
	assert.Contains(t, rec.Flags, rules.FlagDuplicateSuspected)
	assert.Empty(t, rep.Records[0].Invoice.Reference)
}

func TestEngine_OrphanAndUnpaid(t *testing.T) {
	engine := newTestEngine(t)

	rep, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{mustTxn(t, "TXN-5", jan(6), 999, "UNKNOWN SENDER")},
		[]ledger.Invoice{mustInvoice(t, "INV5001", "Nomvula Khumalo", 1500, "")},
	)
	require.NoError(t, err)

	require.Len(t, rep.Records, 2)

	unpaid := findRecord(t, rep, "INV5001")
	assert.Equal(t, rules.Unpaid, unpaid.Classification)
	assert.True(t, unpaid.Variance.Equal(decimal.NewFromInt(-1500)))

	orphan := findRecord(t, rep, "TXN-5")
	assert.Equal(t, rules.UnrecognizedPayment, orphan.Classification)
	assert.True(t, orphan.Variance.Equal(decimal.NewFromInt(999)))
}

func fullRunFixture(t *testing.T) ([]ledger.Transaction, []ledger.Invoice) {
	t.Helper()
	txns := []ledger.Transaction{
		mustTxn(t, "TXN-1", jan(3), 1500, "EFT REF:INV1001 JOHN M"),
		mustTxn(t, "TXN-2", jan(4), 800, "PAYMENT JANE D"),
		mustTxn(t, "TXN-3", jan(5), 1000, "PAYMENT SIPHO N"),
		mustTxn(t, "TXN-4", jan(5), 1000, "PAYMENT SIPHO N"),
		mustTxn(t, "TXN-5", jan(6), 999, "UNKNOWN SENDER"),
		mustTxn(t, "TXN-6", jan(7), -200, "REVERSAL JOHN MTHEMBU"),
	}
	invoices := []ledger.Invoice{
		mustInvoice(t, "INV1001", "John Mthembu", 1500, ""),
		mustInvoice(t, "INV2001", "Jane Dlamini", 1200, "INV2001"),
		mustInvoice(t, "INV4001", "Sipho Nkosi", 1000, ""),
		mustInvoice(t, "INV5001", "Nomvula Khumalo", 1500, ""),
	}
	return txns, invoices
}

func TestEngine_FullRun(t *testing.T) {
	engine := newTestEngine(t)
	txns, invoices := fullRunFixture(t)

	rep, err := engine.Reconcile(context.Background(), txns, invoices)
	require.NoError(t, err)

	ids := make([]string, 0, len(rep.Records))
	for _, rec := range rep.Records {
		ids = append(ids, rec.RecordID)
	}
	assert.Equal(t, []string{"INV1001", "INV2001", "INV4001", "INV5001", "TXN-5", "TXN-6"}, ids)

	assert.Equal(t, rules.Paid, findRecord(t, rep, "INV1001").Classification)
	assert.Equal(t, rules.Partial, findRecord(t, rep, "INV2001").Classification)
	assert.Equal(t, rules.Overpaid, findRecord(t, rep, "INV4001").Classification)
	assert.Equal(t, rules.Unpaid, findRecord(t, rep, "INV5001").Classification)

	// The reversal never matches anything and keeps its sign.
	refund := findRecord(t, rep, "TXN-6")
	assert.Equal(t, rules.UnrecognizedPayment, refund.Classification)
	assert.True(t, refund.Variance.Equal(decimal.NewFromInt(-200)))

	assert.True(t, rep.Totals.Due.Equal(decimal.NewFromInt(5200)), "due = %s", rep.Totals.Due)
	assert.True(t, rep.Totals.Received.Equal(decimal.NewFromInt(5099)), "received = %s", rep.Totals.Received)
	assert.True(t, rep.Totals.Variance.Equal(decimal.NewFromInt(-101)), "variance = %s", rep.Totals.Variance)
	assert.True(t, rep.Totals.Variance.Equal(rep.Totals.Received.Sub(rep.Totals.Due)))

	assert.Equal(t, 4, rep.MatchedTransactions)
	assert.Equal(t, 6, rep.TotalTransactions)
	assert.InDelta(t, 4.0/6.0, rep.MatchRate, 0.0001)
}

func TestEngine_PermutationDeterminism(t *testing.T) {
	engine := newTestEngine(t)
	txns, invoices := fullRunFixture(t)

	forward, err := engine.Reconcile(context.Background(), txns, invoices)
	require.NoError(t, err)

	reversedTxns := make([]ledger.Transaction, len(txns))
	for i, txn := range txns {
		reversedTxns[len(txns)-1-i] = txn
	}
	reversedInvoices := make([]ledger.Invoice, len(invoices))
	for i, inv := range invoices {
		reversedInvoices[len(invoices)-1-i] = inv
	}

	backward, err := engine.Reconcile(context.Background(), reversedTxns, reversedInvoices)
	require.NoError(t, err)

	assert.Equal(t, forward, backward)
}

func TestEngine_InputsNotMutated(t *testing.T) {
	engine := newTestEngine(t)
	txns, invoices := fullRunFixture(t)

	txnOrder := make([]string, len(txns))
	for i, txn := range txns {
		txnOrder[i] = txn.SequenceID
	}
	invOrder := make([]string, len(invoices))
	for i, inv := range invoices {
		invOrder[i] = inv.InvoiceID
	}

	_, err := engine.Reconcile(context.Background(), txns, invoices)
	require.NoError(t, err)

	for i, txn := range txns {
		assert.Equal(t, txnOrder[i], txn.SequenceID)
	}
	for i, inv := range invoices {
		assert.Equal(t, invOrder[i], inv.InvoiceID)
	}
}

func TestEngine_EmptyInputs(t *testing.T) {
	engine := newTestEngine(t)

	rep, err := engine.Reconcile(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Empty(t, rep.Records)
	assert.Zero(t, rep.MatchRate)
	assert.True(t, rep.Totals.Variance.IsZero())
}

func TestEngine_DuplicateIDsRejected(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{
			mustTxn(t, "TXN-1", jan(3), 100, "A"),
			mustTxn(t, "TXN-1", jan(4), 200, "B"),
		},
		nil,
	)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "transaction", vErr.Entity)
	assert.Equal(t, "TXN-1", vErr.ID)

	_, err = engine.Reconcile(context.Background(),
		nil,
		[]ledger.Invoice{
			mustInvoice(t, "INV-1", "Tenant A", 100, ""),
			mustInvoice(t, "INV-1", "Tenant B", 200, ""),
		},
	)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "invoice", vErr.Entity)
}

func TestEngine_InvalidRecordRejected(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Reconcile(context.Background(),
		[]ledger.Transaction{{SequenceID: "TXN-1", Amount: decimal.NewFromInt(100)}},
		nil,
	)
	var vErr *ledger.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "date", vErr.Field)

	_, err = engine.Reconcile(context.Background(),
		nil,
		[]ledger.Invoice{{InvoiceID: "INV-1", Tenant: "Tenant", AmountDue: decimal.Zero, DueDate: jan(1)}},
	)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount due", vErr.Field)
}

func TestEngine_ContextCancelled(t *testing.T) {
	engine := newTestEngine(t)
	txns, invoices := fullRunFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Reconcile(ctx, txns, invoices)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"negative threshold", func(c *Config) { c.SimilarityThreshold = -1 }, "similarity threshold"},
		{"threshold above 100", func(c *Config) { c.SimilarityThreshold = 101 }, "similarity threshold"},
		{"negative epsilon", func(c *Config) { c.AmountEpsilon = decimal.NewFromFloat(-0.01) }, "amount epsilon"},
		{"negative window", func(c *Config) { c.DuplicateWindow = -time.Hour }, "duplicate window"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := New(cfg)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := New(DefaultConfig())
	assert.NoError(t, err)
}

func TestConfig_ZeroValuesAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SimilarityThreshold = 0
	cfg.AmountEpsilon = decimal.Zero
	cfg.DuplicateWindow = 0

	_, err := New(cfg)
	assert.NoError(t, err)
}
