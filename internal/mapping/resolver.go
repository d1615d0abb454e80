package mapping

import (
	"context"
	"fmt"
	"math"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/scoring"
	"github.com/rs/zerolog"
)

// Acceptance thresholds
const (
	ForcedNearestThreshold = 0.90
	SoftThreshold          = 0.60
	FuzzyStrongThreshold   = 0.80
)

// Stage names for the generic chain
const (
	StageCanonical  = "canonical"
	StageLearned    = "learned"
	StageHeuristic  = "heuristic"
	StageSimilarity = "similarity"
)

// DefaultPrecedence is the generic chain run after the forced tiers
var DefaultPrecedence = []string{StageCanonical, StageLearned, StageHeuristic, StageSimilarity}

// MemoryLoader reads learned mappings for a normalized header, highest weight first
type MemoryLoader interface {
	Load(ctx context.Context, token string) ([]models.LearnedMapping, error)
}

// Resolver maps uploaded headers onto candidate columns
type Resolver struct {
	norm       *Normalizer
	memory     MemoryLoader
	scorer     scoring.Scorer
	precedence []string
	forcedKeys []string
	log        zerolog.Logger
}

// NewResolver validates the precedence list and wires the optional memory and scorer.
// A nil scorer means plain fuzzy similarity.
func NewResolver(norm *Normalizer, memory MemoryLoader, scorer scoring.Scorer, precedence []string, log zerolog.Logger) (*Resolver, error) {
	if norm == nil {
		var err error
		if norm, err = NewNormalizer(DefaultNormalizeCacheSize); err != nil {
			return nil, err
		}
	}
	if scorer == nil {
		scorer = scoring.NewFuzzyScorer()
	}
	if len(precedence) == 0 {
		precedence = DefaultPrecedence
	}

	if err := ValidatePrecedence(precedence); err != nil {
		return nil, err
	}

	return &Resolver{
		norm:       norm,
		memory:     memory,
		scorer:     scorer,
		precedence: append([]string(nil), precedence...),
		forcedKeys: forcedDictionary.Keys(),
		log:        log,
	}, nil
}

// ValidatePrecedence rejects unknown or repeated stage names
func ValidatePrecedence(precedence []string) error {
	seen := make(map[string]bool)
	for _, stage := range precedence {
		switch stage {
		case StageCanonical, StageLearned, StageHeuristic, StageSimilarity:
		default:
			return fmt.Errorf("unknown mapping stage %q", stage)
		}
		if seen[stage] {
			return fmt.Errorf("mapping stage %q listed twice", stage)
		}
		seen[stage] = true
	}
	return nil
}

// Normalize exposes the resolver's cached normalizer
func (r *Resolver) Normalize(header string) string {
	return r.norm.Normalize(header)
}

// claims tracks which columns are taken within one upload
type claims struct {
	valid map[string]bool
	used  map[string]bool
	order []string
}

func newClaims(columns []string) *claims {
	c := &claims{valid: make(map[string]bool), used: make(map[string]bool)}
	for _, col := range columns {
		if col == "" || col == models.NotNeeded || c.valid[col] {
			continue
		}
		c.valid[col] = true
		c.order = append(c.order, col)
	}
	return c
}

func (c *claims) available(field string) bool {
	return field != "" && c.valid[field] && !c.used[field]
}

func (c *claims) take(field string) bool {
	if !c.available(field) {
		return false
	}
	c.used[field] = true
	return true
}

func (c *claims) remaining() []string {
	out := make([]string, 0, len(c.order))
	for _, col := range c.order {
		if !c.used[col] {
			out = append(out, col)
		}
	}
	return out
}

// Resolve decides a column for every header, left to right. A column claimed
// by an earlier header is never offered to a later one. Unmapped headers are
// kept in the output with status "Not Matched".
func (r *Resolver) Resolve(ctx context.Context, headers []string, columns []string) []models.MappingDecision {
	c := newClaims(columns)
	out := make([]models.MappingDecision, 0, len(headers))
	for _, h := range headers {
		out = append(out, r.resolveOne(ctx, h, c))
	}
	return out
}

func (r *Resolver) resolveOne(ctx context.Context, header string, c *claims) models.MappingDecision {
	d := models.MappingDecision{Uploaded: header, Status: models.StatusNotMatched, Reason: "None"}
	tok := r.norm.Normalize(header)

	if field, ok := LookupForced(tok); ok && c.take(field) {
		d.Matched, d.Status, d.Confidence, d.Reason = field, models.StatusForcedNormalized, 1.0, "Forced normalized"
		return d
	}

	// nearest forced alias by edit distance only: a forced key that is merely a
	// substring ("name" in "currcompanyname") must not win here
	if tok != "" {
		if key, score, ok := scoring.ExtractOneBy(tok, r.forcedKeys, scoring.Ratio); ok && score >= ForcedNearestThreshold {
			if field, _ := LookupForced(key); c.take(field) {
				d.Matched, d.Status, d.Confidence, d.Reason = field, models.StatusForcedNearest, round3(score), "Forced nearest"
				return d
			}
		}
	}

	if m, ok := r.generic(ctx, header, tok, c); ok && c.take(m.Field) {
		d.Matched, d.Status, d.Confidence, d.Reason = m.Field, "Matched ("+m.Reason+")", round3(m.Score), m.Reason
		return d
	}

	if best, score, ok := scoring.ExtractOne(header, c.remaining()); ok && corroborated(header, best, score) && c.take(best) {
		d.Matched, d.Status, d.Confidence, d.Reason = best, models.StatusFuzzy, round3(score), "Fuzzy"
		return d
	}

	return d
}

// generic runs the configured chain and returns the first candidate that is an
// unclaimed real column scoring above SoftThreshold
func (r *Resolver) generic(ctx context.Context, header, tok string, c *claims) (scoring.Match, bool) {
	for _, stage := range r.precedence {
		var m scoring.Match
		switch stage {
		case StageCanonical:
			if field, ok := LookupCanonical(tok); ok {
				m = scoring.Match{Field: field, Score: 1.0, Reason: "Canonical dictionary"}
			}
		case StageLearned:
			m = r.learned(ctx, tok, c)
		case StageHeuristic:
			g := HeuristicGuess(tok)
			m = scoring.Match{Field: g.Field, Score: g.Score, Reason: g.Reason}
		case StageSimilarity:
			m = r.similarity(ctx, header, c)
		}
		if c.available(m.Field) && m.Score > SoftThreshold {
			return m, true
		}
	}
	return scoring.Match{}, false
}

func (r *Resolver) learned(ctx context.Context, tok string, c *claims) scoring.Match {
	if r.memory == nil || tok == "" {
		return scoring.Match{}
	}
	entries, err := r.memory.Load(ctx, tok)
	if err != nil {
		r.log.Warn().Err(err).Str("token", tok).Msg("learned mapping lookup failed")
		return scoring.Match{}
	}
	for _, e := range entries {
		if c.available(e.DBCol) {
			return scoring.Match{Field: e.DBCol, Score: e.Confidence, Reason: "Learned"}
		}
	}
	return scoring.Match{}
}

func (r *Resolver) similarity(ctx context.Context, header string, c *claims) scoring.Match {
	m, err := r.scorer.Score(ctx, header, c.remaining())
	if err != nil {
		r.log.Warn().Err(err).Str("header", header).Msg("similarity scoring failed")
		return scoring.Match{}
	}
	if m.Reason == scoring.ReasonFuzzy && !corroborated(header, m.Field, m.Score) {
		return scoring.Match{}
	}
	return m
}

// corroborated keeps string similarity conservative: a middling score also
// needs the first three normalized characters to agree.
func corroborated(header, field string, score float64) bool {
	if field == "" || score < SoftThreshold {
		return false
	}
	return score > FuzzyStrongThreshold || prefix3(Normalize(field)) == prefix3(Normalize(header))
}

func prefix3(s string) string {
	r := []rune(s)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// IsKnownHeader reports whether a header names a candidate column through the
// forced or canonical dictionaries or the heuristics
func IsKnownHeader(header string) bool {
	tok := Normalize(header)
	if tok == "" {
		return false
	}
	if _, ok := LookupForced(tok); ok {
		return true
	}
	if _, ok := LookupCanonical(tok); ok {
		return true
	}
	return HeuristicGuess(tok).Field != ""
}
