package matcher

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// indelOptions scores a substitution as a delete plus an insert, which
// makes RatioForStrings the classic sequence-matcher ratio
// (matched*2 / total length).
var indelOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 2,
	Matches: levenshtein.IdenticalRunes,
}

// ratio returns the 0-100 similarity of two strings.
func ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.RatioForStrings([]rune(a), []rune(b), indelOptions) * 100
}

// tokenSetRatio computes a token-set similarity between two sorted token
// slices, 0-100. The shared tokens are compared against each side's full
// token string and the two full strings against each other; the best of
// the three wins. Word order and duplicate tokens therefore do not
// matter, and a name that extends another ("JANE" vs "JANE DLAMINI")
// still scores high.
func tokenSetRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter, restA, restB := splitTokens(a, b)
	if len(inter) > 0 && len(restA) == 0 && len(restB) == 0 {
		return 100
	}

	s0 := strings.Join(inter, " ")
	s1 := joinTokens(inter, restA)
	s2 := joinTokens(inter, restB)

	best := ratio(s1, s2)
	if s0 != "" {
		if r := ratio(s0, s1); r > best {
			best = r
		}
		if r := ratio(s0, s2); r > best {
			best = r
		}
	}
	if best > 100 {
		best = 100
	}
	return best
}

// splitTokens partitions two sorted token slices into the shared tokens
// and each side's remainder, preserving sort order.
func splitTokens(a, b []string) (inter, restA, restB []string) {
	inB := make(map[string]struct{}, len(b))
	for _, tok := range b {
		inB[tok] = struct{}{}
	}

	inInter := make(map[string]struct{})
	for _, tok := range a {
		if _, ok := inB[tok]; ok {
			inter = append(inter, tok)
			inInter[tok] = struct{}{}
		} else {
			restA = append(restA, tok)
		}
	}
	for _, tok := range b {
		if _, ok := inInter[tok]; !ok {
			restB = append(restB, tok)
		}
	}
	return inter, restA, restB
}

func joinTokens(head, tail []string) string {
	if len(head) == 0 {
		return strings.Join(tail, " ")
	}
	if len(tail) == 0 {
		return strings.Join(head, " ")
	}
	return strings.Join(head, " ") + " " + strings.Join(tail, " ")
}
