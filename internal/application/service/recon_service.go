// Package service orchestrates reconciliation runs end to end: ingest,
// engine, persistence, and the follow-up actions (summary generation
// and Slack notification).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"rent-reconciliation-backend/internal/domain/recon"
	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/export"
	"rent-reconciliation-backend/internal/infrastructure/storage"
	"rent-reconciliation-backend/internal/ingest"
	"rent-reconciliation-backend/internal/summary"
)

// ErrNoReport is returned when a summary is requested for a run that
// never completed.
var ErrNoReport = errors.New("run has no report to summarize")

// RunRequest holds the inputs for one reconciliation run.
type RunRequest struct {
	Bank   io.Reader // bank feed CSV
	Ledger io.Reader // invoice ledger CSV
	Strict bool      // abort on the first bad row instead of skipping
	Notify bool      // post the Slack digest after a successful run
}

// RunResult is a completed run with its report and the rows skipped in
// lenient mode.
type RunResult struct {
	Run             *storage.Run
	Report          *report.Report
	BankRowErrors   []ingest.RowError
	LedgerRowErrors []ingest.RowError
}

// ReconciliationService runs the pipeline. Safe for concurrent use;
// runs themselves are serialized since the SQLite store has a single
// writer.
type ReconciliationService struct {
	engine    *recon.Engine
	store     storage.Repository
	generator summary.Generator
	notifier  *export.Notifier
	logger    *slog.Logger

	runMu sync.Mutex
}

// NewReconciliationService wires the service. The notifier may be nil
// when Slack is not configured.
func NewReconciliationService(
	engine *recon.Engine,
	store storage.Repository,
	generator summary.Generator,
	notifier *export.Notifier,
	logger *slog.Logger,
) *ReconciliationService {
	return &ReconciliationService{
		engine:    engine,
		store:     store,
		generator: generator,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run ingests both CSVs, reconciles them, and persists the run with its
// records. Ingest and engine failures are recorded as a failed run and
// returned to the caller.
func (s *ReconciliationService) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	runID := uuid.NewString()
	run := storage.NewRun(runID, time.Now())
	if err := s.store.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}

	s.logger.Info("reconciliation run started", "run_id", runID, "strict", req.Strict)

	opts := ingest.Options{Strict: req.Strict}
	txns, bankErrs, err := ingest.ReadTransactions(req.Bank, opts)
	if err != nil {
		return nil, s.failRun(run, fmt.Errorf("reading bank csv: %w", err))
	}
	invoices, ledgerErrs, err := ingest.ReadInvoices(req.Ledger, opts)
	if err != nil {
		return nil, s.failRun(run, fmt.Errorf("reading ledger csv: %w", err))
	}

	rep, err := s.engine.Reconcile(ctx, txns, invoices)
	if err != nil {
		return nil, s.failRun(run, err)
	}

	run.Complete(rep, time.Now())
	if err := s.store.SaveRun(run); err != nil {
		return nil, fmt.Errorf("saving run: %w", err)
	}
	if err := s.store.SaveRecords(runID, storage.RecordRowsFromReport(runID, rep)); err != nil {
		return nil, fmt.Errorf("saving records: %w", err)
	}

	s.logger.Info("reconciliation run completed",
		"run_id", runID,
		"records", len(rep.Records),
		"matched", rep.MatchedTransactions,
		"total", rep.TotalTransactions,
		"match_rate", rep.MatchRate,
		"skipped_bank_rows", len(bankErrs),
		"skipped_ledger_rows", len(ledgerErrs),
	)

	if req.Notify && s.notifier != nil && s.notifier.Enabled() {
		// A failed notification does not fail the run.
		if err := s.notifier.NotifyRunComplete(ctx, runID, rep); err != nil {
			s.logger.Warn("slack notification failed", "run_id", runID, "error", err)
		}
	}

	return &RunResult{
		Run:             run,
		Report:          rep,
		BankRowErrors:   bankErrs,
		LedgerRowErrors: ledgerErrs,
	}, nil
}

// Summarize returns the run's narrative summary, generating it on first
// request and caching it on the run row.
func (s *ReconciliationService) Summarize(ctx context.Context, runID string) (string, error) {
	run, err := s.store.GetRun(runID)
	if err != nil {
		return "", err
	}
	if run.Summary != "" {
		return run.Summary, nil
	}
	if run.Status != storage.RunStatusCompleted {
		return "", fmt.Errorf("%w: run %s is %s", ErrNoReport, runID, run.Status)
	}

	result, err := s.store.ListRecords(runID, storage.RecordFilters{Limit: run.RecordCount})
	if err != nil {
		return "", fmt.Errorf("loading records: %w", err)
	}

	text, err := s.generator.Generate(ctx, summary.FactsFromRun(run, result.Records))
	if err != nil {
		return "", fmt.Errorf("generating summary: %w", err)
	}

	run.Summary = text
	if err := s.store.SaveRun(run); err != nil {
		s.logger.Warn("caching summary failed", "run_id", runID, "error", err)
	}

	s.logger.Info("run summary generated", "run_id", runID, "chars", len(text))
	return text, nil
}

func (s *ReconciliationService) failRun(run *storage.Run, cause error) error {
	run.Fail(cause.Error(), time.Now())
	if err := s.store.SaveRun(run); err != nil {
		s.logger.Error("recording failed run", "run_id", run.RunID, "error", err)
	}
	s.logger.Error("reconciliation run failed", "run_id", run.RunID, "error", cause)
	return cause
}
