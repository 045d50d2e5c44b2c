package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-reconciliation-backend/internal/export"
	"rent-reconciliation-backend/internal/infrastructure/config"
)

const (
	testBankCSV = `txn_id,date,amount,description,reference
TXN-1,2025-01-03,1500.00,EFT REF:INV1001 JOHN M,INV1001
TXN-2,2025-01-04,800.00,CAPITEC PAYMENT JANE D,
TXN-5,2025-01-06,999.00,UNKNOWN SENDER,
`
	testLedgerCSV = `invoice_id,tenant,amount_due,due_date
INV1001,John Mthembu,1500.00,2025-01-01
INV2001,Jane Dlamini,1200.00,2025-01-01
INV5001,Nomvula Khumalo,1500.00,2025-01-01
`
)

func writeTestCSVs(t *testing.T, dir string) (bankPath, ledgerPath string) {
	t.Helper()
	bankPath = filepath.Join(dir, "bank.csv")
	ledgerPath = filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(bankPath, []byte(testBankCSV), 0o644))
	require.NoError(t, os.WriteFile(ledgerPath, []byte(testLedgerCSV), 0o644))
	return bankPath, ledgerPath
}

func TestRunReconcile_WritesReportFiles(t *testing.T) {
	dir := t.TempDir()
	bankPath, ledgerPath := writeTestCSVs(t, dir)
	outDir := filepath.Join(dir, "reports")

	flags := &ReconFlags{
		Bank:      bankPath,
		Ledger:    ledgerPath,
		Out:       outDir,
		Summarize: true,
		Slack:     true,
	}

	require.NoError(t, RunReconcile(&config.Config{}, flags))

	for _, name := range []string{export.RecordsFilename, export.ExceptionsFilename, export.OrphansFilename} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunReconcile_SkipsExportsWhenOutEmpty(t *testing.T) {
	dir := t.TempDir()
	bankPath, ledgerPath := writeTestCSVs(t, dir)

	flags := &ReconFlags{Bank: bankPath, Ledger: ledgerPath, Out: ""}
	require.NoError(t, RunReconcile(&config.Config{}, flags))

	_, err := os.Stat(filepath.Join(dir, "reports"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunReconcile_MissingInputs(t *testing.T) {
	err := RunReconcile(&config.Config{}, &ReconFlags{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "-bank")
}

func TestRunReconcile_MissingBankFile(t *testing.T) {
	dir := t.TempDir()
	_, ledgerPath := writeTestCSVs(t, dir)

	flags := &ReconFlags{Bank: filepath.Join(dir, "nope.csv"), Ledger: ledgerPath, Out: ""}
	err := RunReconcile(&config.Config{}, flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening bank csv")
}

func TestRunReconcile_BadEngineConfig(t *testing.T) {
	dir := t.TempDir()
	bankPath, ledgerPath := writeTestCSVs(t, dir)

	cfg := &config.Config{}
	cfg.Engine.AmountEpsilon = "not-a-number"

	err := RunReconcile(cfg, &ReconFlags{Bank: bankPath, Ledger: ledgerPath, Out: ""})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount_epsilon")
}

func TestRunReconcile_StrictAbortsOnBadRow(t *testing.T) {
	dir := t.TempDir()
	badBank := `txn_id,date,amount,description
TXN-1,2025-01-03,1500.00,EFT REF:INV1001 JOHN M
TXN-2,not-a-date,800.00,CAPITEC PAYMENT JANE D
`
	bankPath := filepath.Join(dir, "bank.csv")
	require.NoError(t, os.WriteFile(bankPath, []byte(badBank), 0o644))
	ledgerPath := filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(ledgerPath, []byte(testLedgerCSV), 0o644))

	flags := &ReconFlags{Bank: bankPath, Ledger: ledgerPath, Strict: true, Out: ""}
	err := RunReconcile(&config.Config{}, flags)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
}
