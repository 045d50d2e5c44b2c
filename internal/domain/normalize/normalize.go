// Package normalize canonicalizes free-text bank and ledger fields into
// comparable token sets. Bank descriptions carry payment-method markers,
// bank-name prefixes and label noise ("EFT", "REF:", "CAPITEC") that must
// not influence name matching, so they are stripped before tokenization.
//
// The noise-token list is configuration data. Reference patterns are not:
// they describe the shape of invoice references, which is an algorithmic
// concern, not a per-bank idiom.
package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Reference shapes, tried in order: dashed ("INV-1001") then plain
// alphanumeric ("INV1001").
var refPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z]{2,}-\d+\b`),
	regexp.MustCompile(`\b[A-Z]{2,}\d{2,}\b`),
}

var (
	nonAlnum   = regexp.MustCompile(`[^A-Z0-9]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// DefaultNoiseTokens covers common South African bank feed idioms.
// Multi-word entries are stripped as whole phrases.
func DefaultNoiseTokens() []string {
	return []string{
		"PAYMENT", "EFT", "INCOMING", "DEBIT ORDER", "TXN", "REF:", "PAID",
		"TRANSFER", "CAPITEC", "FNB", "ABSA", "NEDBANK", "STANDARD BANK",
	}
}

// Normalizer cleans text deterministically. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	noiseRE *regexp.Regexp // nil when the noise list is empty
}

// New builds a Normalizer stripping the given noise tokens. Tokens are
// matched case-insensitively on word boundaries, so "ref:" strips "REF:"
// but leaves "PREFIX" alone.
func New(noiseTokens []string) *Normalizer {
	n := &Normalizer{}

	quoted := make([]string, 0, len(noiseTokens))
	for _, tok := range noiseTokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		quoted = append(quoted, regexp.QuoteMeta(strings.ToUpper(tok)))
	}
	if len(quoted) > 0 {
		// Longer alternatives first so "DEBIT ORDER" wins over "DEBIT".
		sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
		n.noiseRE = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return n
}

// Clean returns the canonical form of text: uppercased, noise stripped,
// punctuation collapsed to single spaces, trimmed. Pure and total; empty
// input yields "".
func (n *Normalizer) Clean(text string) string {
	s := strings.ToUpper(text)
	if n.noiseRE != nil {
		s = n.noiseRE.ReplaceAllString(s, " ")
	}
	s = nonAlnum.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens returns the sorted, deduplicated token set of the cleaned text.
func (n *Normalizer) Tokens(text string) []string {
	cleaned := n.Clean(text)
	if cleaned == "" {
		return []string{}
	}

	seen := make(map[string]struct{})
	tokens := make([]string, 0, 8)
	for _, tok := range strings.Fields(cleaned) {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// ExtractReference finds the first invoice-reference-shaped token in the
// raw text. It runs on the uppercased original so hyphenated references
// survive; returns "" when nothing matches.
func ExtractReference(text string) string {
	upper := strings.ToUpper(text)
	for _, re := range refPatterns {
		if ref := re.FindString(upper); ref != "" {
			return ref
		}
	}
	return ""
}
