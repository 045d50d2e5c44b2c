package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"

	"rent-reconciliation-backend/internal/domain/recon"
	"rent-reconciliation-backend/internal/export"
	"rent-reconciliation-backend/internal/infrastructure/config"
	"rent-reconciliation-backend/internal/infrastructure/logging"
	"rent-reconciliation-backend/internal/ingest"
	"rent-reconciliation-backend/internal/summary"
)

// RunReconcile runs one reconciliation from the command line: ingest
// both CSVs, reconcile, print the report, write the export files, and
// run the optional follow-ups.
func RunReconcile(cfg *config.Config, flags *ReconFlags) error {
	if flags.Bank == "" || flags.Ledger == "" {
		return errors.New("bank and ledger CSV paths are required (-bank, -ledger)")
	}

	loggingCfg := cfg.Observability.Logging
	if flags.Verbose {
		loggingCfg.Level = "debug"
	}
	logger := logging.NewLoggerWithScope(loggingCfg, "cli")

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}
	engine, err := recon.New(engineCfg)
	if err != nil {
		return err
	}

	bank, err := os.Open(flags.Bank)
	if err != nil {
		return fmt.Errorf("opening bank csv: %w", err)
	}
	defer func() { _ = bank.Close() }()

	ledgerCSV, err := os.Open(flags.Ledger)
	if err != nil {
		return fmt.Errorf("opening ledger csv: %w", err)
	}
	defer func() { _ = ledgerCSV.Close() }()

	if !flags.JSON {
		PrintHeader(os.Stdout, flags.Bank, flags.Ledger, flags.Strict)
	}

	ctx := context.Background()
	opts := ingest.Options{Strict: flags.Strict}

	txns, bankErrs, err := ingest.ReadTransactions(bank, opts)
	if err != nil {
		return fmt.Errorf("reading bank csv: %w", err)
	}
	invoices, ledgerErrs, err := ingest.ReadInvoices(ledgerCSV, opts)
	if err != nil {
		return fmt.Errorf("reading ledger csv: %w", err)
	}

	logger.Debug("inputs parsed",
		"transactions", len(txns),
		"invoices", len(invoices),
		"skipped_bank_rows", len(bankErrs),
		"skipped_ledger_rows", len(ledgerErrs),
	)

	rep, err := engine.Reconcile(ctx, txns, invoices)
	if err != nil {
		return err
	}

	runID := uuid.NewString()

	generateSummary := func() (string, error) {
		generator, err := summary.NewGenerator(ctx, cfg.Gemini, logger)
		if err != nil {
			return "", err
		}
		text, err := generator.Generate(ctx, summary.FactsFromReport(runID, rep))
		if err != nil {
			return "", fmt.Errorf("generating summary: %w", err)
		}
		return text, nil
	}

	if flags.JSON {
		out := NewRunOutput(runID, rep, bankErrs, ledgerErrs)
		if flags.Summarize {
			if out.Summary, err = generateSummary(); err != nil {
				return err
			}
		}
		if err := PrintJSON(os.Stdout, out); err != nil {
			return err
		}
	} else {
		PrintReport(os.Stdout, rep)
		PrintRowErrors(os.Stdout, "bank", bankErrs)
		PrintRowErrors(os.Stdout, "ledger", ledgerErrs)
		if flags.Summarize {
			fmt.Println("\nGenerating summary...")
			text, err := generateSummary()
			if err != nil {
				return err
			}
			PrintSummary(os.Stdout, text)
		}
	}

	if flags.Out != "" {
		if err := export.WriteReportFiles(flags.Out, rep); err != nil {
			return err
		}
		if !flags.JSON {
			fmt.Printf("\nReport files written to %s\n", flags.Out)
		}
	}

	if flags.Slack {
		notifier := export.NewNotifier(cfg.Slack.WebhookURL, logger)
		if !notifier.Enabled() {
			if !flags.JSON {
				fmt.Println("Slack skipped (no webhook URL).")
			}
		} else if err := notifier.NotifyRunComplete(ctx, runID, rep); err != nil {
			logger.Warn("slack notification failed", "run_id", runID, "error", err)
		} else if !flags.JSON {
			fmt.Println("Slack sent.")
		}
	}

	return nil
}
