// Package matcher pairs bank transactions with rent invoices using a
// tiered strategy: exact reference, exact name plus amount, then fuzzy
// name similarity.
//
// Tiers run in strict order. A transaction is consumed by its first
// match, while an invoice keeps accumulating transactions across tiers
// so split and duplicate payments land on the right obligation. Inputs
// are placed in canonical order before any tier runs, so the output is
// identical for every permutation of the input rows.
//
// Example usage:
//
//	norm := normalize.New(normalize.DefaultNoiseTokens())
//	m := matcher.New(norm, matcher.DefaultConfig())
//	set := m.Match(transactions, invoices)
//	for _, c := range set.Candidates {
//		// c.Invoice received c.Transaction via c.Tier
//	}
package matcher

import (
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"rent-reconciliation-backend/internal/domain/ledger"
	"rent-reconciliation-backend/internal/domain/normalize"
)

// Below this many similarity cells the fuzzy tier stays on one goroutine.
const parallelCellThreshold = 4096

// Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	norm *normalize.Normalizer
	cfg  Config
}

// New builds a Matcher. The config must already be validated; engine
// construction owns the range checks.
func New(norm *normalize.Normalizer, cfg Config) *Matcher {
	return &Matcher{norm: norm, cfg: cfg}
}

type txnEntry struct {
	txn      ledger.Transaction
	tokens   []string
	tokenSet map[string]struct{}
	ref      string
	matched  bool
}

type invEntry struct {
	inv        ledger.Invoice
	nameTokens []string
	paid       decimal.Decimal
	matches    int
}

// Match assigns transactions to invoices. Zero transactions or zero
// invoices is not an error; everything comes back unmatched.
func (m *Matcher) Match(transactions []ledger.Transaction, invoices []ledger.Invoice) MatchSet {
	txns := m.prepareTransactions(transactions)
	invs := m.prepareInvoices(invoices)

	candidates := make([]Candidate, 0, len(txns))
	m.runExactRef(txns, invs, &candidates)
	m.runExactNameAmount(txns, invs, &candidates)
	m.runFuzzy(txns, invs, &candidates)

	set := MatchSet{Candidates: candidates}
	for _, t := range txns {
		if !t.matched {
			set.UnmatchedTransactions = append(set.UnmatchedTransactions, t.txn)
		}
	}
	for _, e := range invs {
		if e.matches == 0 {
			set.UnmatchedInvoices = append(set.UnmatchedInvoices, e.inv)
		}
	}
	return set
}

// prepareTransactions copies, canonically orders (date then sequence id)
// and tokenizes the input without mutating the caller's slice.
func (m *Matcher) prepareTransactions(transactions []ledger.Transaction) []*txnEntry {
	sorted := make([]ledger.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Date.Equal(sorted[j].Date) {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].SequenceID < sorted[j].SequenceID
	})

	entries := make([]*txnEntry, len(sorted))
	for i, t := range sorted {
		tokens := m.norm.Tokens(t.Description)
		set := make(map[string]struct{}, len(tokens))
		for _, tok := range tokens {
			set[tok] = struct{}{}
		}
		entries[i] = &txnEntry{
			txn:      t,
			tokens:   tokens,
			tokenSet: set,
			ref:      transactionReference(t),
		}
	}
	return entries
}

// prepareInvoices copies and canonically orders invoices (billing period
// then invoice id, the same precedence the tie-break uses).
func (m *Matcher) prepareInvoices(invoices []ledger.Invoice) []*invEntry {
	sorted := make([]ledger.Invoice, len(invoices))
	copy(sorted, invoices)
	sort.Slice(sorted, func(i, j int) bool {
		pi, pj := sorted[i].Period(), sorted[j].Period()
		if pi != pj {
			return pi < pj
		}
		return sorted[i].InvoiceID < sorted[j].InvoiceID
	})

	entries := make([]*invEntry, len(sorted))
	for i, inv := range sorted {
		entries[i] = &invEntry{
			inv:        inv,
			nameTokens: m.norm.Tokens(inv.Tenant),
			paid:       decimal.Zero,
		}
	}
	return entries
}

// transactionReference pulls a reference-shaped token from the
// description, then from the dedicated reference column, then falls back
// to the raw reference column as given.
func transactionReference(t ledger.Transaction) string {
	if ref := normalize.ExtractReference(t.Description); ref != "" {
		return ref
	}
	if ref := normalize.ExtractReference(t.Reference); ref != "" {
		return ref
	}
	return strings.ToUpper(strings.TrimSpace(t.Reference))
}

// runExactRef matches transactions whose extracted reference names an
// invoice's payment reference or invoice id, with exact amount equality.
func (m *Matcher) runExactRef(txns []*txnEntry, invs []*invEntry, out *[]Candidate) {
	refIndex := make(map[string][]*invEntry)
	for _, e := range invs {
		for _, key := range invoiceRefKeys(e.inv) {
			refIndex[key] = append(refIndex[key], e)
		}
	}
	if len(refIndex) == 0 {
		return
	}

	for _, t := range txns {
		if t.matched || t.ref == "" {
			continue
		}
		var cands []*invEntry
		for _, e := range refIndex[t.ref] {
			if t.txn.Amount.Equal(e.inv.AmountDue) {
				cands = append(cands, e)
			}
		}
		if best := m.pickExact(cands); best != nil {
			m.attach(t, best, TierExactRef, 1.0, 0, out)
		}
	}
}

// invoiceRefKeys returns the uppercased lookup keys an invoice answers
// to: its payment reference and its invoice id.
func invoiceRefKeys(inv ledger.Invoice) []string {
	id := strings.ToUpper(strings.TrimSpace(inv.InvoiceID))
	ref := strings.ToUpper(strings.TrimSpace(inv.Reference))
	if ref == "" || ref == id {
		return []string{id}
	}
	return []string{ref, id}
}

// runExactNameAmount matches transactions whose tokens contain every one
// of the invoice's tenant-name tokens, with exact amount equality.
func (m *Matcher) runExactNameAmount(txns []*txnEntry, invs []*invEntry, out *[]Candidate) {
	for _, t := range txns {
		if t.matched || len(t.tokenSet) == 0 {
			continue
		}
		var cands []*invEntry
		for _, e := range invs {
			if len(e.nameTokens) == 0 {
				continue
			}
			if !t.txn.Amount.Equal(e.inv.AmountDue) {
				continue
			}
			if containsAll(t.tokenSet, e.nameTokens) {
				cands = append(cands, e)
			}
		}
		if best := m.pickExact(cands); best != nil {
			m.attach(t, best, TierExactNameAmount, 1.0, 0, out)
		}
	}
}

func containsAll(set map[string]struct{}, tokens []string) bool {
	for _, tok := range tokens {
		if _, ok := set[tok]; !ok {
			return false
		}
	}
	return true
}

// runFuzzy scores the remaining transactions against every invoice and
// assigns those at or above the similarity threshold with an admissible
// amount.
func (m *Matcher) runFuzzy(txns []*txnEntry, invs []*invEntry, out *[]Candidate) {
	var open []*txnEntry
	for _, t := range txns {
		if !t.matched && len(t.tokens) > 0 {
			open = append(open, t)
		}
	}
	if len(open) == 0 || len(invs) == 0 {
		return
	}

	sims := m.similarityMatrix(open, invs)

	threshold := float64(m.cfg.SimilarityThreshold)
	for i, t := range open {
		row := sims[i]
		var best *invEntry
		var bestSim float64
		for j, e := range invs {
			sim := row[j]
			if sim < threshold {
				continue
			}
			if !m.fuzzyAmountOK(t.txn.Amount, e.inv.AmountDue) {
				continue
			}
			if best == nil || m.better(e, sim, best, bestSim) {
				best, bestSim = e, sim
			}
		}
		if best != nil {
			m.attach(t, best, TierFuzzy, bestSim/100, bestSim, out)
		}
	}
}

// similarityMatrix fills one row of token-set scores per transaction.
// Each cell is a pure function of the read-only token table, so rows can
// be filled on any goroutine; the assignment loop consumes the matrix in
// canonical order, which keeps the result deterministic.
func (m *Matcher) similarityMatrix(txns []*txnEntry, invs []*invEntry) [][]float64 {
	sims := make([][]float64, len(txns))
	fill := func(from, to int) {
		for i := from; i < to; i++ {
			row := make([]float64, len(invs))
			for j, e := range invs {
				if len(e.nameTokens) == 0 {
					continue
				}
				row[j] = tokenSetRatio(txns[i].tokens, e.nameTokens)
			}
			sims[i] = row
		}
	}

	if len(txns)*len(invs) < parallelCellThreshold {
		fill(0, len(txns))
		return sims
	}

	workers := runtime.GOMAXPROCS(0)
	if workers > len(txns) {
		workers = len(txns)
	}
	chunk := (len(txns) + workers - 1) / workers

	var wg sync.WaitGroup
	for from := 0; from < len(txns); from += chunk {
		to := from + chunk
		if to > len(txns) {
			to = len(txns)
		}
		wg.Add(1)
		go func(from, to int) {
			defer wg.Done()
			fill(from, to)
		}(from, to)
	}
	wg.Wait()
	return sims
}

// fuzzyAmountOK admits positive payments that do not exceed the amount
// due by more than the epsilon. Underpayments qualify so partial payments
// can accumulate; refunds and zero lines never fuzzy-match.
func (m *Matcher) fuzzyAmountOK(amount, due decimal.Decimal) bool {
	return amount.IsPositive() && amount.LessThanOrEqual(due.Add(m.cfg.AmountEpsilon))
}

// pickExact selects among equal-confidence candidates.
func (m *Matcher) pickExact(cands []*invEntry) *invEntry {
	var best *invEntry
	for _, e := range cands {
		if best == nil || m.better(e, 1.0, best, 1.0) {
			best = e
		}
	}
	return best
}

// better reports whether a outranks b: invoices with a collectible
// balance first, then higher confidence, then earlier billing period,
// then lower invoice id. A settled invoice receives further transactions
// only when no open candidate remains, which is the duplicate payment
// path.
func (m *Matcher) better(a *invEntry, aScore float64, b *invEntry, bScore float64) bool {
	aOpen, bOpen := m.openBalance(a), m.openBalance(b)
	if aOpen != bOpen {
		return aOpen
	}
	if aScore != bScore {
		return aScore > bScore
	}
	ap, bp := a.inv.Period(), b.inv.Period()
	if ap != bp {
		return ap < bp
	}
	return a.inv.InvoiceID < b.inv.InvoiceID
}

func (m *Matcher) openBalance(e *invEntry) bool {
	return e.inv.AmountDue.Sub(e.paid).GreaterThan(m.cfg.AmountEpsilon)
}

func (m *Matcher) attach(t *txnEntry, e *invEntry, tier Tier, confidence, similarity float64, out *[]Candidate) {
	t.matched = true
	e.paid = e.paid.Add(t.txn.Amount)
	e.matches++
	*out = append(*out, Candidate{
		Transaction: t.txn,
		Invoice:     e.inv,
		Tier:        tier,
		Confidence:  confidence,
		Similarity:  similarity,
	})
}
