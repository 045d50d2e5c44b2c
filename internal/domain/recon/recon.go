// Package recon wires the reconciliation pipeline end to end: normalize,
// match, classify, assemble. It is the only package callers need for an
// in-process run.
//
// Example usage:
//
//	engine, err := recon.New(recon.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	rep, err := engine.Reconcile(ctx, transactions, invoices)
package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/matcher"
	"rent-reconciliation-backend/internal/domain/normalize"
	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
)

// ConfigurationError reports a config value outside its allowed range.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// Config is the complete tuning surface of the engine.
type Config struct {
	// NoiseTokens are stripped from descriptions before matching.
	NoiseTokens []string

	// SimilarityThreshold is the minimum token-set score, 0 to 100
	// inclusive, for a fuzzy match.
	SimilarityThreshold int

	// AmountEpsilon is the tolerance for treating two amounts as equal.
	AmountEpsilon decimal.Decimal

	// DuplicateWindow is the maximum gap between two equal payments
	// before they stop looking like a duplicate.
	DuplicateWindow time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		NoiseTokens:         normalize.DefaultNoiseTokens(),
		SimilarityThreshold: 80,
		AmountEpsilon:       decimal.NewFromFloat(0.01),
		DuplicateWindow:     48 * time.Hour,
	}
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 100 {
		return &ConfigurationError{Field: "similarity threshold", Reason: "must be between 0 and 100"}
	}
	if c.AmountEpsilon.IsNegative() {
		return &ConfigurationError{Field: "amount epsilon", Reason: "must not be negative"}
	}
	if c.DuplicateWindow < 0 {
		return &ConfigurationError{Field: "duplicate window", Reason: "must not be negative"}
	}
	return nil
}

// Engine runs the full pipeline. Immutable after construction and safe
// for concurrent use.
type Engine struct {
	cfg     Config
	matcher *matcher.Matcher
	rules   *rules.Engine
}

// New validates the config and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	norm := normalize.New(cfg.NoiseTokens)
	return &Engine{
		cfg: cfg,
		matcher: matcher.New(norm, matcher.Config{
			SimilarityThreshold: cfg.SimilarityThreshold,
			AmountEpsilon:       cfg.AmountEpsilon,
		}),
		rules: rules.NewEngine(rules.Config{
			AmountEpsilon:   cfg.AmountEpsilon,
			DuplicateWindow: cfg.DuplicateWindow,
		}),
	}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reconcile matches transactions against invoices and returns the
// assembled report. Inputs are not mutated, and the result does not
// depend on their order.
func (e *Engine) Reconcile(ctx context.Context, txns []ledger.Transaction, invoices []ledger.Invoice) (*report.Report, error) {
	if err := validateInputs(txns, invoices); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set := e.matcher.Match(txns, invoices)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return report.Assemble(e.rules.Classify(set))
}

func validateInputs(txns []ledger.Transaction, invoices []ledger.Invoice) error {
	seenTxn := make(map[string]struct{}, len(txns))
	for _, t := range txns {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seenTxn[t.SequenceID]; dup {
			return &ledger.ValidationError{
				Entity: "transaction", ID: t.SequenceID,
				Field: "sequence id", Reason: "is duplicated",
			}
		}
		seenTxn[t.SequenceID] = struct{}{}
	}

	seenInv := make(map[string]struct{}, len(invoices))
	for _, inv := range invoices {
		if err := inv.Validate(); err != nil {
			return err
		}
		if _, dup := seenInv[inv.InvoiceID]; dup {
			return &ledger.ValidationError{
				Entity: "invoice", ID: inv.InvoiceID,
				Field: "invoice id", Reason: "is duplicated",
			}
		}
		seenInv[inv.InvoiceID] = struct{}{}
	}
	return nil
}
