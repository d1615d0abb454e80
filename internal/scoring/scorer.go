// Package scoring ranks candidate columns against an uploaded header.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// Reasons reported by the built-in scorers
const (
	ReasonFuzzy    = "Fuzzy"
	ReasonSemantic = "Semantic"
	ReasonNone     = "No match"
)

// Match is the best column a scorer found for a header
type Match struct {
	Field  string
	Score  float64
	Reason string
}

// Scorer is the similarity capability used at the end of the generic mapping chain
type Scorer interface {
	Score(ctx context.Context, header string, fields []string) (Match, error)
	Name() string
}

// FuzzyScorer ranks fields by string similarity
type FuzzyScorer struct{}

// NewFuzzyScorer creates a string-similarity scorer
func NewFuzzyScorer() *FuzzyScorer {
	return &FuzzyScorer{}
}

// Score implements Scorer
func (FuzzyScorer) Score(_ context.Context, header string, fields []string) (Match, error) {
	best, score, ok := ExtractOne(header, fields)
	if !ok {
		return Match{Reason: ReasonNone}, nil
	}
	return Match{Field: best, Score: score, Reason: ReasonFuzzy}, nil
}

// Name implements Scorer
func (FuzzyScorer) Name() string { return "fuzzy" }

// Generator produces text from a prompt
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// SemanticScorer asks a language model which column a header means
type SemanticScorer struct {
	llm Generator
}

// NewSemanticScorer creates a scorer backed by a generative model
func NewSemanticScorer(llm Generator) *SemanticScorer {
	return &SemanticScorer{llm: llm}
}

// Name implements Scorer
func (s *SemanticScorer) Name() string { return "semantic" }

// Score implements Scorer
func (s *SemanticScorer) Score(ctx context.Context, header string, fields []string) (Match, error) {
	if len(fields) == 0 {
		return Match{Reason: ReasonNone}, nil
	}

	response, err := s.llm.GenerateContent(ctx, buildMappingPrompt(header, fields))
	if err != nil {
		return Match{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	m, err := parseMatch(response, fields)
	if err != nil {
		return Match{}, fmt.Errorf("failed to parse match: %w", err)
	}
	return m, nil
}

func buildMappingPrompt(header string, fields []string) string {
	var sb strings.Builder

	sb.WriteString("You map spreadsheet column headers from recruiting trackers onto a candidate database.\n\n")
	sb.WriteString(fmt.Sprintf("Header: %q\n\n", sanitizeUTF8(header)))
	sb.WriteString("Candidate columns:\n")
	for _, f := range fields {
		sb.WriteString(fmt.Sprintf("- %s\n", f))
	}
	sb.WriteString("\nPick the single column the header most likely holds, or null if none fits.\n")
	sb.WriteString("Respond in the following JSON format:\n")
	sb.WriteString(`{"field": "<column or null>", "confidence": <0.0-1.0>}` + "\n")
	sb.WriteString("Be conservative: use a confidence below 0.6 when unsure.\n")
	sb.WriteString("Return ONLY the JSON object, no additional text.\n")

	return sb.String()
}

// sanitizeUTF8 replaces invalid byte sequences so uploaded headers with broken
// encodings still produce a valid prompt
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

// parseMatch pulls the JSON object out of a model response and checks it
// names one of the offered fields
func parseMatch(response string, fields []string) (Match, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")
	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return Match{}, fmt.Errorf("no JSON found in response")
	}

	var out struct {
		Field      *string `json:"field"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(response[startIdx:endIdx+1]), &out); err != nil {
		return Match{}, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if out.Field == nil || *out.Field == "" {
		return Match{Reason: ReasonNone}, nil
	}

	for _, f := range fields {
		if f == *out.Field {
			return Match{Field: f, Score: clamp(out.Confidence), Reason: ReasonSemantic}, nil
		}
	}
	return Match{Reason: ReasonNone}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// FallbackScorer tries primary and degrades to secondary when primary fails
type FallbackScorer struct {
	primary   Scorer
	secondary Scorer
	log       zerolog.Logger
}

// WithFallback wraps primary so an outage never breaks header mapping
func WithFallback(primary, secondary Scorer, log zerolog.Logger) *FallbackScorer {
	return &FallbackScorer{primary: primary, secondary: secondary, log: log}
}

// Name implements Scorer
func (f *FallbackScorer) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

// Score implements Scorer
func (f *FallbackScorer) Score(ctx context.Context, header string, fields []string) (Match, error) {
	m, err := f.primary.Score(ctx, header, fields)
	if err == nil {
		return m, nil
	}
	f.log.Warn().Err(err).Str("header", header).Str("scorer", f.primary.Name()).Msg("similarity scorer failed, falling back")
	return f.secondary.Score(ctx, header, fields)
}
