package cli

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Fixture file names match the exports the reconciler was built around.
const (
	FixtureBankFilename   = "landlord_bank_transactions.csv"
	FixtureLedgerFilename = "rent_ledger.csv"
)

// Tenant names and bank prefixes give the sample data a South African
// rental texture.
var (
	fixtureTenants = []string{
		"John Mthembu", "Jane Dlamini", "Nomvula Khumalo", "Sipho Ndlovu",
		"Thandi Nkosi", "Pieter van Wyk", "Lerato Molefe", "Ayesha Patel",
		"David Botha", "Zanele Mahlangu", "Kagiso Mokoena", "Fatima Ismail",
	}
	fixtureBanks   = []string{"CAPITEC", "FNB", "ABSA", "STANDARD BANK", "NEDBANK"}
	fixtureOrphans = []string{"UNKNOWN SENDER", "CASH DEPOSIT", "TRANSFER FROM SAVINGS"}
)

// RunFixtures generates the sample CSV pair for demos and tests.
func RunFixtures(flags *FixtureFlags) error {
	seed := flags.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if err := GenerateFixtures(flags.Dir, flags.Tenants, seed); err != nil {
		return err
	}
	fmt.Printf("Sample CSVs written to %s (%s, %s)\n", flags.Dir, FixtureBankFilename, FixtureLedgerFilename)
	return nil
}

// GenerateFixtures writes a matching bank statement and rent ledger CSV
// pair into dir. The same seed produces the same files: most tenants
// pay in full, some short-pay or pay twice, some miss the month, and a
// few payments arrive that belong to no invoice at all.
func GenerateFixtures(dir string, tenants int, seed int64) error {
	if tenants <= 0 {
		tenants = 8
	}
	if tenants > len(fixtureTenants) {
		tenants = len(fixtureTenants)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	rng := rand.New(rand.NewSource(seed))
	now := time.Now().UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	ledgerRows := [][]string{{"invoice_id", "tenant", "amount_due", "due_date"}}
	bankRows := [][]string{{"txn_id", "date", "amount", "description", "reference"}}

	txnNum := 0
	nextTxn := func() string {
		txnNum++
		return fmt.Sprintf("TXN-%d", txnNum)
	}
	payDay := func() string {
		return month.AddDate(0, 0, rng.Intn(7)).Format("2006-01-02")
	}
	bankName := func() string {
		return fixtureBanks[rng.Intn(len(fixtureBanks))]
	}

	for i := 0; i < tenants; i++ {
		invoiceID := fmt.Sprintf("INV%d", 1001+i)
		tenant := fixtureTenants[i]
		rent := float64(3500 + rng.Intn(230)*50)

		ledgerRows = append(ledgerRows, []string{
			invoiceID, tenant, amountString(rent), month.Format("2006-01-02"),
		})

		switch roll := rng.Float64(); {
		case roll < 0.50:
			// Paid in full with the invoice reference quoted.
			bankRows = append(bankRows, []string{
				nextTxn(), payDay(), amountString(rent),
				fmt.Sprintf("%s EFT REF:%s %s", bankName(), invoiceID, shortName(tenant)),
				invoiceID,
			})
		case roll < 0.65:
			// Paid in full but only the tenant's name in the narrative.
			bankRows = append(bankRows, []string{
				nextTxn(), payDay(), amountString(rent),
				fmt.Sprintf("%s PAYMENT %s", bankName(), strings.ToUpper(tenant)),
				"",
			})
		case roll < 0.78:
			// Short paid.
			fraction := 0.4 + 0.4*rng.Float64()
			bankRows = append(bankRows, []string{
				nextTxn(), payDay(), amountString(rent * fraction),
				fmt.Sprintf("%s EFT REF:%s %s", bankName(), invoiceID, shortName(tenant)),
				invoiceID,
			})
		case roll < 0.88:
			// Paid twice a day apart, the duplicate-suspect shape.
			first := month.AddDate(0, 0, rng.Intn(6))
			for _, d := range []time.Time{first, first.AddDate(0, 0, 1)} {
				bankRows = append(bankRows, []string{
					nextTxn(), d.Format("2006-01-02"), amountString(rent),
					fmt.Sprintf("%s EFT REF:%s %s", bankName(), invoiceID, shortName(tenant)),
					invoiceID,
				})
			}
		default:
			// Missed the month entirely.
		}
	}

	orphanCount := 2 + rng.Intn(2)
	for i := 0; i < orphanCount; i++ {
		amount := float64(250 + rng.Intn(15)*250)
		bankRows = append(bankRows, []string{
			nextTxn(), payDay(), amountString(amount),
			fixtureOrphans[rng.Intn(len(fixtureOrphans))],
			"",
		})
	}

	if err := writeFixtureCSV(filepath.Join(dir, FixtureBankFilename), bankRows); err != nil {
		return err
	}
	return writeFixtureCSV(filepath.Join(dir, FixtureLedgerFilename), ledgerRows)
}

func writeFixtureCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := csv.NewWriter(file).WriteAll(rows); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

func amountString(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// shortName renders "Jane Dlamini" the way bank narratives tend to,
// as "JANE D".
func shortName(full string) string {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return strings.ToUpper(full)
	}
	return strings.ToUpper(parts[0] + " " + parts[len(parts)-1][:1])
}
