// Package summary produces the natural-language summary attached to a
// reconciliation run. The Gemini generator writes it with an LLM; the
// text generator renders a deterministic fallback so runs always get a
// summary even without an API key.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rent-reconciliation-backend/internal/domain/report"
	"rent-reconciliation-backend/internal/domain/rules"
	"rent-reconciliation-backend/internal/infrastructure/config"
	"rent-reconciliation-backend/internal/infrastructure/storage"
)

// maxExceptionFacts caps how many exception records go into the facts
// so large runs keep a bounded prompt size.
const maxExceptionFacts = 20

// Facts is the run digest a generator works from. Both a fresh report
// and a stored run reduce to the same shape.
type Facts struct {
	RunID      string          `json:"run_id"`
	Matched    int             `json:"matched_transactions"`
	Total      int             `json:"total_transactions"`
	MatchRate  float64         `json:"match_rate"`
	Due        string          `json:"total_due"`
	Received   string          `json:"total_received"`
	Variance   string          `json:"total_variance"`
	Counts     map[string]int  `json:"classification_counts"`
	Flagged    int             `json:"flagged_records"`
	Exceptions []ExceptionFact `json:"exceptions,omitempty"`
}

// ExceptionFact is one record that needs follow-up.
type ExceptionFact struct {
	RecordID       string   `json:"record_id"`
	Tenant         string   `json:"tenant,omitempty"`
	Classification string   `json:"classification"`
	Variance       string   `json:"variance"`
	Flags          []string `json:"flags,omitempty"`
}

// FactsFromReport digests a just-assembled report.
func FactsFromReport(runID string, rep *report.Report) Facts {
	facts := Facts{
		RunID:     runID,
		Matched:   rep.MatchedTransactions,
		Total:     rep.TotalTransactions,
		MatchRate: rep.MatchRate,
		Due:       rep.Totals.Due.String(),
		Received:  rep.Totals.Received.String(),
		Variance:  rep.Totals.Variance.String(),
		Counts:    rep.Counts,
	}

	for _, rec := range rep.Records {
		if len(rec.Flags) > 0 {
			facts.Flagged++
		}
		if rec.Classification == rules.Paid && len(rec.Flags) == 0 {
			continue
		}
		if len(facts.Exceptions) == maxExceptionFacts {
			continue
		}
		fact := ExceptionFact{
			RecordID:       rec.RecordID,
			Classification: rec.Classification.String(),
			Variance:       rec.Variance.String(),
		}
		if rec.Invoice != nil {
			fact.Tenant = rec.Invoice.Tenant
		}
		for _, f := range rec.Flags {
			fact.Flags = append(fact.Flags, string(f))
		}
		facts.Exceptions = append(facts.Exceptions, fact)
	}

	return facts
}

// FactsFromRun digests a stored run and its records, for summaries
// generated after the fact.
func FactsFromRun(run *storage.Run, rows []*storage.RecordRow) Facts {
	facts := Facts{
		RunID:     run.RunID,
		Matched:   run.MatchedTransactions,
		Total:     run.TotalTransactions,
		MatchRate: run.MatchRate,
		Due:       run.TotalDue,
		Received:  run.TotalReceived,
		Variance:  run.TotalVariance,
		Counts:    make(map[string]int, 5),
	}

	for _, row := range rows {
		facts.Counts[row.Classification]++
		if len(row.Flags) > 0 {
			facts.Flagged++
		}
		if row.Classification == rules.Paid.String() && len(row.Flags) == 0 {
			continue
		}
		if len(facts.Exceptions) == maxExceptionFacts {
			continue
		}
		facts.Exceptions = append(facts.Exceptions, ExceptionFact{
			RecordID:       row.RecordID,
			Tenant:         row.Tenant,
			Classification: row.Classification,
			Variance:       row.Variance,
			Flags:          row.Flags,
		})
	}

	return facts
}

// Generator writes a short human-readable summary of a finished run.
type Generator interface {
	Generate(ctx context.Context, facts Facts) (string, error)
}

// NewGenerator returns the Gemini generator when an API key is
// configured and the deterministic text generator otherwise.
func NewGenerator(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (Generator, error) {
	if cfg.APIKey == "" {
		return NewTextGenerator(), nil
	}
	return NewGeminiGenerator(ctx, cfg, logger)
}

// TextGenerator renders a summary from the run numbers alone. Same
// facts in, same text out.
type TextGenerator struct{}

// NewTextGenerator creates the deterministic fallback generator.
func NewTextGenerator() *TextGenerator {
	return &TextGenerator{}
}

// Generate renders the facts into a few plain sentences.
func (g *TextGenerator) Generate(_ context.Context, facts Facts) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Reconciliation run %s matched %d of %d payments (%.1f%%).",
		facts.RunID, facts.Matched, facts.Total, facts.MatchRate*100)
	fmt.Fprintf(&b, " Rent due was %s, payments received totalled %s, leaving a net variance of %s.",
		facts.Due, facts.Received, facts.Variance)

	var outcomes []string
	for _, c := range []rules.Classification{rules.Paid, rules.Partial, rules.Overpaid, rules.Unpaid} {
		if n := facts.Counts[c.String()]; n > 0 {
			outcomes = append(outcomes, fmt.Sprintf("%d %s", n, strings.ToLower(c.String())))
		}
	}
	if len(outcomes) > 0 {
		fmt.Fprintf(&b, " Invoice outcomes: %s.", strings.Join(outcomes, ", "))
	}

	if n := facts.Counts[rules.UnrecognizedPayment.String()]; n > 0 {
		fmt.Fprintf(&b, " %d %s could not be attributed to any invoice.",
			n, plural(n, "payment", "payments"))
	}
	if facts.Flagged > 0 {
		fmt.Fprintf(&b, " %d %s flagged for manual review.",
			facts.Flagged, plural(facts.Flagged, "record is", "records are"))
	}

	return b.String(), nil
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}
