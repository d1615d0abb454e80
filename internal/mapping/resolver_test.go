package mapping

import (
	"context"
	"errors"
	"testing"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/scoring"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMemory struct {
	entries map[string][]models.LearnedMapping
	err     error
	calls   int
}

func (f *fakeMemory) Load(_ context.Context, token string) ([]models.LearnedMapping, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries[token], nil
}

type stubScorer struct {
	match scoring.Match
	err   error
}

func (s stubScorer) Score(context.Context, string, []string) (scoring.Match, error) {
	return s.match, s.err
}

func (s stubScorer) Name() string { return "stub" }

func candidateColumns() []string {
	return append(append([]string(nil), SheetColumns...), models.NotNeeded)
}

func newTestResolver(t *testing.T, memory MemoryLoader, scorer scoring.Scorer, precedence ...string) *Resolver {
	t.Helper()
	r, err := NewResolver(nil, memory, scorer, precedence, zerolog.Nop())
	require.NoError(t, err)
	return r
}

func TestResolve_ForcedAliases(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"Full Name", "Email ID", "Phone Number"}, candidateColumns())
	require.Len(t, got, 3)

	want := []string{"candidate_name", "emails", "phones"}
	for i, d := range got {
		assert.Equal(t, want[i], d.Matched)
		assert.Equal(t, models.StatusForcedNormalized, d.Status)
		assert.Equal(t, 1.0, d.Confidence)
	}
}

func TestResolve_ScreeningQuestionHeader(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"Ans(What is your current CTC in Lakhs per annum?)"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "current_ctc_lpa", got[0].Matched)
	assert.Equal(t, 1.0, got[0].Confidence)
	assert.Equal(t, models.StatusForcedNormalized, got[0].Status)
}

func TestResolve_HeuristicCompany(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"curr. company name"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "current_company", got[0].Matched)
	assert.InDelta(t, 0.88, got[0].Confidence, 1e-9)
	assert.Contains(t, got[0].Status, "Heuristic")
}

func TestResolve_ForcedNearest(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"Candidate Nam"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "candidate_name", got[0].Matched)
	assert.Equal(t, models.StatusForcedNearest, got[0].Status)
	assert.InDelta(t, 0.923, got[0].Confidence, 1e-9)
}

func TestResolve_ColumnsAreExclusive(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"Email", "Email ID", "Mobile", "Phone"}, candidateColumns())
	require.Len(t, got, 4)

	assert.Equal(t, "emails", got[0].Matched)
	assert.NotEqual(t, "emails", got[1].Matched)
	assert.Equal(t, "phones", got[2].Matched)
	assert.NotEqual(t, "phones", got[3].Matched)

	seen := make(map[string]bool)
	for _, d := range got {
		if d.Matched == "" {
			continue
		}
		assert.False(t, seen[d.Matched], "column %s claimed twice", d.Matched)
		seen[d.Matched] = true
	}
}

func TestResolve_KeepsUnmappedHeaders(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"", "###"}, candidateColumns())
	require.Len(t, got, 2)
	for i, d := range got {
		assert.Equal(t, models.StatusNotMatched, d.Status, i)
		assert.Empty(t, d.Matched)
		assert.Equal(t, "None", d.Reason)
		assert.Zero(t, d.Confidence)
	}
	assert.Equal(t, "###", got[1].Uploaded)
}

func TestResolve_OnlyOffersGivenColumns(t *testing.T) {
	r := newTestResolver(t, nil, nil)

	got := r.Resolve(context.Background(), []string{"Full Name", "Email"}, []string{"emails"})
	require.Len(t, got, 2)
	assert.Equal(t, models.StatusNotMatched, got[0].Status)
	assert.Equal(t, "emails", got[1].Matched)
}

func TestResolve_LearnedMapping(t *testing.T) {
	mem := &fakeMemory{entries: map[string][]models.LearnedMapping{
		"candnm": {{UploadedColNorm: "candnm", DBCol: "candidate_name", Weight: 3, Confidence: 0.8}},
	}}
	r := newTestResolver(t, mem, nil)

	got := r.Resolve(context.Background(), []string{"Cand Nm"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "candidate_name", got[0].Matched)
	assert.Equal(t, "Matched (Learned)", got[0].Status)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
	assert.Equal(t, 1, mem.calls)
}

func TestResolve_LearnedSkipsClaimedColumn(t *testing.T) {
	mem := &fakeMemory{entries: map[string][]models.LearnedMapping{
		"candnm": {
			{DBCol: "candidate_name", Weight: 5, Confidence: 0.9},
			{DBCol: "job_title", Weight: 1, Confidence: 0.7},
		},
	}}
	r := newTestResolver(t, mem, nil)

	got := r.Resolve(context.Background(), []string{"Full Name", "Cand Nm"}, candidateColumns())
	require.Len(t, got, 2)
	assert.Equal(t, "candidate_name", got[0].Matched)
	assert.Equal(t, "job_title", got[1].Matched)
}

func TestResolve_ForcedBeatsLearned(t *testing.T) {
	mem := &fakeMemory{entries: map[string][]models.LearnedMapping{
		"fullname": {{DBCol: "comments", Weight: 50, Confidence: 1.0}},
	}}
	r := newTestResolver(t, mem, nil, StageLearned, StageCanonical, StageHeuristic, StageSimilarity)

	got := r.Resolve(context.Background(), []string{"Full Name"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "candidate_name", got[0].Matched)
	assert.Equal(t, models.StatusForcedNormalized, got[0].Status)
}

func TestResolve_MemoryFailureFallsThrough(t *testing.T) {
	mem := &fakeMemory{err: errors.New("db down")}
	r := newTestResolver(t, mem, nil)

	got := r.Resolve(context.Background(), []string{"curr. company name"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "current_company", got[0].Matched)
	assert.Equal(t, 1, mem.calls)
}

func TestResolve_Precedence(t *testing.T) {
	def := newTestResolver(t, nil, nil)
	got := def.Resolve(context.Background(), []string{"Alma Mater"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "education", got[0].Matched)
	assert.Equal(t, "Matched (Canonical dictionary)", got[0].Status)
	assert.Equal(t, 1.0, got[0].Confidence)

	heuristicFirst := newTestResolver(t, nil, nil, StageHeuristic, StageCanonical)
	got = heuristicFirst.Resolve(context.Background(), []string{"Alma Mater"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "education", got[0].Matched)
	assert.Equal(t, "Matched (Heuristic: education token)", got[0].Status)
	assert.InDelta(t, 0.85, got[0].Confidence, 1e-9)
}

func TestResolve_SemanticScorer(t *testing.T) {
	scorer := stubScorer{match: scoring.Match{Field: "key_skills", Score: 0.75, Reason: scoring.ReasonSemantic}}
	r := newTestResolver(t, nil, scorer)

	got := r.Resolve(context.Background(), []string{"Tech Summary"}, candidateColumns())
	require.Len(t, got, 1)
	assert.Equal(t, "key_skills", got[0].Matched)
	assert.Equal(t, "Matched (Semantic)", got[0].Status)
	assert.InDelta(t, 0.75, got[0].Confidence, 1e-9)
}

func TestResolve_ScorerCannotPickNotNeeded(t *testing.T) {
	scorer := stubScorer{match: scoring.Match{Field: models.NotNeeded, Score: 0.99, Reason: scoring.ReasonSemantic}}
	r := newTestResolver(t, nil, scorer)

	got := r.Resolve(context.Background(), []string{"Tech Summary"}, candidateColumns())
	require.Len(t, got, 1)
	assert.NotEqual(t, models.NotNeeded, got[0].Matched)
	assert.NotEqual(t, "Matched (Semantic)", got[0].Status)
}

func TestResolve_ScorerErrorDegrades(t *testing.T) {
	r := newTestResolver(t, nil, stubScorer{err: errors.New("quota exceeded")})

	got := r.Resolve(context.Background(), []string{"Full Name", "Tech Summary"}, candidateColumns())
	require.Len(t, got, 2)
	assert.Equal(t, "candidate_name", got[0].Matched)
	assert.NotEqual(t, "Matched (Semantic)", got[1].Status)
}

func TestNewResolver_RejectsBadPrecedence(t *testing.T) {
	_, err := NewResolver(nil, nil, nil, []string{"canonical", "magic"}, zerolog.Nop())
	assert.Error(t, err)

	_, err = NewResolver(nil, nil, nil, []string{"learned", "learned"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestCorroborated(t *testing.T) {
	assert.True(t, corroborated("Emails", "emails", 0.9))
	assert.True(t, corroborated("Emal Addr", "emails", 0.65), "shared prefix rescues a middling score")
	assert.False(t, corroborated("Region", "comments", 0.7))
	assert.False(t, corroborated("Emails", "emails", 0.5))
	assert.False(t, corroborated("Emails", "", 0.95))
}
