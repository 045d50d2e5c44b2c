package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/recon"
	"rent-reconciliation-backend/internal/ingest"
)

func readFixtures(t *testing.T, dir string) ([]ledger.Transaction, []ledger.Invoice) {
	t.Helper()

	bank, err := os.Open(filepath.Join(dir, FixtureBankFilename))
	require.NoError(t, err)
	defer bank.Close()
	txns, rowErrs, err := ingest.ReadTransactions(bank, ingest.Options{})
	require.NoError(t, err)
	require.Empty(t, rowErrs, "generated bank rows must all parse")

	ledgerFile, err := os.Open(filepath.Join(dir, FixtureLedgerFilename))
	require.NoError(t, err)
	defer ledgerFile.Close()
	invoices, rowErrs, err := ingest.ReadInvoices(ledgerFile, ingest.Options{})
	require.NoError(t, err)
	require.Empty(t, rowErrs, "generated ledger rows must all parse")

	return txns, invoices
}

func TestGenerateFixtures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateFixtures(dir, 8, 42))

	txns, invoices := readFixtures(t, dir)

	assert.Len(t, invoices, 8)
	assert.NotEmpty(t, txns)
	for _, inv := range invoices {
		assert.NoError(t, inv.Validate())
	}
	for _, txn := range txns {
		assert.NoError(t, txn.Validate())
	}
}

func TestGenerateFixtures_Reconcilable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateFixtures(dir, 12, 7))

	txns, invoices := readFixtures(t, dir)

	engine, err := recon.New(recon.DefaultConfig())
	require.NoError(t, err)
	rep, err := engine.Reconcile(context.Background(), txns, invoices)
	require.NoError(t, err)

	// Every invoice yields a record, and every transaction is accounted
	// for as matched or unrecognized.
	assert.GreaterOrEqual(t, len(rep.Records), len(invoices))
	assert.Equal(t, len(txns), rep.TotalTransactions)
}

func TestGenerateFixtures_Deterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	require.NoError(t, GenerateFixtures(dirA, 8, 99))
	require.NoError(t, GenerateFixtures(dirB, 8, 99))

	for _, name := range []string{FixtureBankFilename, FixtureLedgerFilename} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b), name)
	}
}

func TestGenerateFixtures_ClampsTenants(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, GenerateFixtures(dir, 500, 1))

	_, invoices := readFixtures(t, dir)
	assert.Len(t, invoices, len(fixtureTenants))
}
