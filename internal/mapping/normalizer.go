// Package mapping resolves arbitrary spreadsheet headers onto candidate columns.
package mapping

import (
	"fmt"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultNormalizeCacheSize bounds the memoized header vocabulary
const DefaultNormalizeCacheSize = 4096

// Normalize turns an uploaded header into its comparison token:
// Ans(...) unwrapped, accents stripped, lowercased, separators and symbols
// dropped, trailing digits trimmed. "E-Mail_1", "email" and "Émail" all give "email".
func Normalize(header string) string {
	s := strings.TrimSpace(header)
	if s == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(s), "ans(") && strings.HasSuffix(s, ")") {
		s = s[4 : len(s)-1]
	}

	s = strings.ToLower(stripAccents(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}

	return strings.TrimRightFunc(b.String(), unicode.IsDigit)
}

func stripAccents(s string) string {
	// NFKD also folds compatibility forms (full-width letters, ligatures).
	// transform.Chain keeps state, so each call gets its own chain
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalizer memoizes Normalize in a bounded LRU
type Normalizer struct {
	cache *lru.Cache[string, string]
}

// NewNormalizer creates a normalizer holding at most size tokens
func NewNormalizer(size int) (*Normalizer, error) {
	if size <= 0 {
		size = DefaultNormalizeCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create normalize cache: %w", err)
	}
	return &Normalizer{cache: cache}, nil
}

// Normalize returns the cached token for header
func (n *Normalizer) Normalize(header string) string {
	if tok, ok := n.cache.Get(header); ok {
		return tok
	}
	tok := Normalize(header)
	n.cache.Add(header, tok)
	return tok
}

// Len reports how many headers are cached
func (n *Normalizer) Len() int {
	return n.cache.Len()
}
