package matcher

import (
	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/ledger"
)

// Tier identifies the matching strategy that produced a candidate.
// Lower tiers are more trustworthy and run first.
type Tier int

const (
	TierExactRef Tier = iota
	TierExactNameAmount
	TierFuzzy
)

// String returns the wire name of the tier.
func (t Tier) String() string {
	switch t {
	case TierExactRef:
		return "EXACT_REF"
	case TierExactNameAmount:
		return "EXACT_NAME_AMOUNT"
	case TierFuzzy:
		return "FUZZY"
	default:
		return "UNKNOWN"
	}
}

// Candidate pairs one transaction with the invoice it was assigned to.
type Candidate struct {
	Transaction ledger.Transaction
	Invoice     ledger.Invoice
	Tier        Tier

	// Confidence is 1.0 for the exact tiers, similarity/100 for fuzzy.
	Confidence float64

	// Similarity is the 0-100 token-set score, set on the fuzzy tier only.
	Similarity float64
}

// MatchSet is the matcher's complete output. Transaction to invoice is
// one-to-one-or-none; invoice to transactions is one-to-many (split and
// duplicate payments), expressed by multiple Candidates sharing an
// invoice id.
type MatchSet struct {
	Candidates            []Candidate
	UnmatchedTransactions []ledger.Transaction
	UnmatchedInvoices     []ledger.Invoice
}

// Config holds matcher tuning. Values are validated upstream at engine
// construction.
type Config struct {
	// SimilarityThreshold is the minimum fuzzy token-set score, 0-100
	// inclusive. A score equal to the threshold matches.
	SimilarityThreshold int

	// AmountEpsilon bounds how far a fuzzy-matched payment may exceed the
	// invoice amount. Underpayments always qualify so split payments can
	// accumulate.
	AmountEpsilon decimal.Decimal
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 80,
		AmountEpsilon:       decimal.NewFromFloat(0.01),
	}
}
