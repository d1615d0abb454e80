package scoring

import (
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Ratio is the Levenshtein similarity of two strings in [0,1]
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}

// partialRatio slides the shorter string across the longer one and keeps the best window
func partialRatio(short, long string) float64 {
	rs, rl := []rune(short), []rune(long)
	if len(rs) > len(rl) {
		rs, rl = rl, rs
	}
	if len(rs) == 0 {
		return 0
	}
	best := 0.0
	for i := 0; i+len(rs) <= len(rl); i++ {
		if r := Ratio(string(rs), string(rl[i:i+len(rs)])); r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

func tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func sortedTokens(s string) string {
	toks := tokens(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

func prepare(s string) string {
	return strings.Join(tokens(strings.ToLower(s)), " ")
}

// WeightedRatio blends plain, token-sorted and partial similarity the way a
// header matcher wants: partial matches only count when the lengths differ a lot.
func WeightedRatio(a, b string) float64 {
	pa, pb := prepare(a), prepare(b)
	if pa == "" || pb == "" {
		return 0
	}
	if pa == pb {
		return 1
	}

	best := Ratio(pa, pb)
	if ts := Ratio(sortedTokens(pa), sortedTokens(pb)) * 0.95; ts > best {
		best = ts
	}

	la, lb := len([]rune(pa)), len([]rune(pb))
	if la > lb {
		la, lb = lb, la
	}
	lengthRatio := float64(lb) / float64(la)
	if lengthRatio < 1.5 {
		return best
	}

	scale := 0.9
	if lengthRatio > 8 {
		scale = 0.6
	}
	if pr := partialRatio(pa, pb) * scale; pr > best {
		best = pr
	}
	return best
}

// ExtractOne returns the choice most similar to query by WeightedRatio. ok is
// false when there are no choices or nothing scores above zero.
func ExtractOne(query string, choices []string) (best string, score float64, ok bool) {
	return ExtractOneBy(query, choices, WeightedRatio)
}

// ExtractOneBy is ExtractOne with a caller-chosen similarity function.
// Ties keep the earliest choice.
func ExtractOneBy(query string, choices []string, similarity func(a, b string) float64) (best string, score float64, ok bool) {
	for _, c := range choices {
		s := similarity(query, c)
		if s > score {
			best, score, ok = c, s, true
		}
	}
	return best, score, ok
}
