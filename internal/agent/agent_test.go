package agent

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/fmuoria/recruit-crm/internal/ingestion"
	"github.com/fmuoria/recruit-crm/internal/mapping"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/notify"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/fmuoria/recruit-crm/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

type recordingNotifier struct {
	sent []notify.Message
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type testEnv struct {
	db       *sql.DB
	agent    *ImportAgent
	repo     *storage.CandidateRepository
	memory   *storage.MappingMemory
	notifier *recordingNotifier
	reqID    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(ctx, storage.DriverSQLite, filepath.Join(t.TempDir(), "recruit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, storage.DriverSQLite))

	repo := storage.NewCandidateRepository(db, storage.DriverSQLite)
	memory := storage.NewMappingMemory(db, storage.DriverSQLite, 0, 0)
	resolver, err := mapping.NewResolver(nil, memory, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	sessions := ingestion.NewSessionStore(ingestion.NewFileHandler(t.TempDir()), nil, time.Hour, zerolog.Nop())

	rec := &recordingNotifier{}
	a, err := NewImportAgent(Options{
		Sessions:   sessions,
		Resolver:   resolver,
		Memory:     memory,
		Candidates: repo,
		Notifier:   rec,
		Recipients: []string{"lead@example.com"},
		Log:        zerolog.Nop(),
	})
	require.NoError(t, err)
	a.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { a.Close() })

	reqID, err := repo.CreateRequirement(ctx, "Backend Engineer", "Acme")
	require.NoError(t, err)

	return &testEnv{db: db, agent: a, repo: repo, memory: memory, notifier: rec, reqID: reqID}
}

func nameEmailMapping() models.ColumnMappings {
	return models.ColumnMappings{
		{Uploaded: "Full Name", Matched: "candidate_name"},
		{Uploaded: "Email", Matched: "emails"},
		{Uploaded: "Source", Matched: models.NotNeeded},
	}
}

func threeRows() []models.Row {
	return []models.Row{
		{"Full Name": "Asha Verma", "Email": "asha@example.com", "Source": "Naukri"},
		{"Full Name": "", "Email": "nobody@example.com", "Source": "Naukri"},
		{"Full Name": "Ravi Kumar", "Email": "ravi@example.com", "Source": "LinkedIn"},
	}
}

func TestNewImportAgent_RequiresCollaborators(t *testing.T) {
	_, err := NewImportAgent(Options{})
	assert.Error(t, err)
}

func TestCommit_DraftPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
		Mode:          ModeDraft,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 1, res.Invalid[0].RowIndex)
	assert.Contains(t, res.Invalid[0].Errors, validation.MsgNameRequired)
	assert.Equal(t, DraftMessage, res.Message)

	table, err := env.repo.ListCandidates(ctx, env.reqID, models.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	nameCol := indexOf(table.Columns, "candidate_name")
	dateCol := indexOf(table.Columns, "application_date")
	assert.Equal(t, "Asha Verma", table.Rows[0][nameCol])
	assert.Equal(t, "Ravi Kumar", table.Rows[1][nameCol])
	assert.Equal(t, "2026-10-17", table.Rows[0][dateCol])
}

func TestCommit_AllModeKeepsValidRows(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Inserted)
	assert.Len(t, res.Invalid, 1)
	assert.Empty(t, res.Message)
}

func TestCommit_ReinforcesMemoryAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
		Mode:          ModeDraft,
	})
	require.NoError(t, err)

	learned, err := env.memory.Load(ctx, "fullname")
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, "candidate_name", learned[0].DBCol)
	assert.Equal(t, 1, learned[0].Weight)
	assert.InDelta(t, 0.7, learned[0].Confidence, 1e-9)

	all, err := env.memory.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2, "Not Needed is never learned")

	require.Len(t, env.notifier.sent, 1)
	msg := env.notifier.sent[0]
	assert.Equal(t, []string{"lead@example.com"}, msg.To)
	assert.Equal(t, "2 candidates imported into Backend Engineer", msg.Subject)
	assert.Contains(t, msg.Text, "Invalid: 1")
}

func TestCommit_EmptyBatchTouchesNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          []models.Row{},
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.NotNil(t, res.Invalid)
	assert.Empty(t, res.Invalid)

	all, err := env.memory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, env.notifier.sent)
}

func TestCommit_NothingInsertedLeavesMemoryAlone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          []models.Row{{"Full Name": "", "Email": "a@example.com"}},
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)
	assert.Len(t, res.Invalid, 1)

	all, err := env.memory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, env.notifier.sent)
}

func TestCommit_SkipsBlankRows(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows: []models.Row{
			{"Full Name": "Asha Verma", "Email": ""},
			{"Full Name": "  ", "Email": ""},
		},
		Mappings: nameEmailMapping(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Empty(t, res.Invalid)
}

func TestCommit_RejectsDuplicateMapping(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings: models.ColumnMappings{
			{Uploaded: "Email", Matched: "emails"},
			{Uploaded: "Alt Email", Matched: "emails"},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMapping))
	assert.Equal(t, "Duplicate mapping to emails", err.Error())
}

func TestCommit_SkippedTargetsNeverConflict(t *testing.T) {
	targets, err := targetsFrom(models.ColumnMappings{
		{Uploaded: "A", Matched: "ignore"},
		{Uploaded: "B", Matched: "ignore"},
		{Uploaded: "C", Matched: "No need to add"},
		{Uploaded: "D", Matched: models.NotNeeded},
		{Uploaded: "E", Matched: ""},
		{Uploaded: "F", Matched: " emails "},
	})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, target{header: "F", field: "emails"}, targets[0])
}

func TestCommit_NotNeededColumnsAreNeverStored(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          []models.Row{{"candidate_name": "Asha Verma", "emails": "asha@example.com"}},
		Mappings: models.ColumnMappings{
			{Uploaded: "candidate_name", Matched: models.NotNeeded},
			{Uploaded: "emails", Matched: models.NotNeeded},
		},
	})
	assert.ErrorIs(t, err, ErrNoMapping)

	table, err := env.repo.ListCandidates(ctx, env.reqID, models.CandidateFilter{})
	require.NoError(t, err)
	assert.Empty(t, table.Rows)
	all, err := env.memory.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCommit_RequiresMapping(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
	})
	assert.ErrorIs(t, err, ErrNoMapping)

	_, err = env.agent.Validate(context.Background(), models.ValidateRequest{
		Rows:    threeRows(),
		Mapping: models.ColumnMappings{{Uploaded: "Source", Matched: "ignore"}},
	})
	assert.ErrorIs(t, err, ErrNoMapping)
}

func TestApplyTargets_DropsUnmappedHeaders(t *testing.T) {
	row := models.Row{"Full Name": "Asha Verma", "emails": "asha@example.com"}
	got := applyTargets(row, []target{{header: "Full Name", field: "candidate_name"}})
	assert.Equal(t, models.Row{"candidate_name": "Asha Verma"}, got)
}

func TestCommit_UnknownRequirement(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID + 100,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
	})
	assert.ErrorIs(t, err, ErrInvalidRequirement)

	_, err = env.agent.Commit(context.Background(), models.CommitRequest{Rows: threeRows()})
	assert.ErrorIs(t, err, ErrInvalidRequirement)
}

func TestCommit_RejectsUnknownMode(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mode:          "later",
	})
	assert.ErrorIs(t, err, ErrInvalidMode)
}

func TestCommit_FromUploadSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	preview, err := env.agent.ParseText(ctx, "Full Name,Email\nAsha Verma,asha@example.com\nRavi Kumar,ravi@example.com\n")
	require.NoError(t, err)

	res, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		UploadID:      preview.UploadID,
		Mappings:      nameEmailMapping(),
		AddedBy:       "recruiter@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	table, err := env.repo.ListCandidates(ctx, env.reqID, models.CandidateFilter{Email: "ravi@"})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "recruiter@example.com", table.Rows[0][indexOf(table.Columns, "added_by")])
}

func TestCommit_ExpiredUpload(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		UploadID:      "6f1c1a52-6a8e-4e4e-9d1e-000000000000",
		Mappings:      nameEmailMapping(),
	})
	assert.ErrorIs(t, err, ingestion.ErrSessionExpired)
}

func TestCommit_ReportsProgress(t *testing.T) {
	env := newTestEnv(t)

	var messages []string
	env.agent.SetProgressCallback(func(current, total int, message string) {
		assert.LessOrEqual(t, current, total)
		messages = append(messages, message)
	})

	_, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, "Import complete", messages[len(messages)-1])
}

func TestCommit_NotifierFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errors.New("smtp down")

	res, err := env.agent.Commit(context.Background(), models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestCommitThenResolve_UsesLearnedMapping(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          []models.Row{{"Cand Nm": "Asha Verma"}},
		Mappings:      models.ColumnMappings{{Uploaded: "Cand Nm", Matched: "candidate_name"}},
	})
	require.NoError(t, err)

	decisions, _, err := env.agent.Resolve(ctx, []string{"Cand Nm"})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "candidate_name", decisions[0].Matched)
	assert.Equal(t, "Matched (Learned)", decisions[0].Status)
	assert.InDelta(t, 0.7, decisions[0].Confidence, 1e-9)
}

func TestValidate_FlagsErrorsAndDuplicates(t *testing.T) {
	env := newTestEnv(t)

	rows := threeRows()
	rows[2]["Email"] = "ASHA@example.com"
	res, err := env.agent.Validate(context.Background(), models.ValidateRequest{
		Rows:    rows,
		Mapping: nameEmailMapping(),
	})
	require.NoError(t, err)

	require.Len(t, res.Rows, 3)
	assert.Equal(t, []string{"candidate_name", "emails"}, res.Columns)
	assert.Equal(t, "ok", res.Rows[0].Status)
	assert.Equal(t, "error", res.Rows[1].Status)
	assert.Contains(t, res.Rows[1].Errors, validation.MsgNameRequired)
	assert.Contains(t, res.Rows[0].Warnings, validation.WarnDuplicateEmail)
	assert.Contains(t, res.Rows[2].Warnings, validation.WarnDuplicateEmail)
	assert.Equal(t, "2026-10-17", res.Rows[0].Data["application_date"])
	_, hasSource := res.Rows[0].Data["Source"]
	assert.False(t, hasSource)
}

func TestValidate_NeedsRows(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.agent.Validate(context.Background(), models.ValidateRequest{})
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestParseText_Preview(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.agent.ParseText(context.Background(), "Full Name\tEmail ID\tZqx\nAsha Verma\tasha@example.com\t1\n")
	require.NoError(t, err)

	assert.True(t, res.HasHeader)
	assert.Equal(t, []string{"Full Name", "Email ID", "Zqx"}, res.Columns)
	require.NotNil(t, res.SuggestedMapping["Full Name"])
	assert.Equal(t, "candidate_name", *res.SuggestedMapping["Full Name"])
	assert.Equal(t, "emails", *res.SuggestedMapping["Email ID"])
	assert.Nil(t, res.SuggestedMapping["Zqx"])
	assert.Equal(t, []string{"Zqx"}, res.UnmappedHeaders)
	assert.Equal(t, []string{"Asha Verma"}, res.Samples["Full Name"])
	assert.Contains(t, res.SystemFields, "candidate_name")
	assert.NotContains(t, res.SystemFields, "requirement_id")
	assert.Equal(t, 1, res.TotalRows)
}

func TestUpload_ResolvesAgainstColumns(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.agent.Upload(context.Background(), "candidates.csv",
		strings.NewReader("Full Name,Phone Number,curr. company name\nAsha,9876543210,Acme\n"))
	require.NoError(t, err)

	assert.NotEmpty(t, res.UploadID)
	assert.Equal(t, 1, res.TotalRows)
	assert.Equal(t, models.NotNeeded, res.DBColumns[len(res.DBColumns)-1])
	require.Len(t, res.Mappings, 3)
	assert.Equal(t, "candidate_name", res.Mappings[0].Matched)
	assert.Equal(t, "phones", res.Mappings[1].Matched)
	assert.Equal(t, "current_company", res.Mappings[2].Matched)

	uploads, err := env.agent.ListUploads(context.Background())
	require.NoError(t, err)
	assert.Contains(t, uploads, res.UploadID)
}

func TestUpload_ColumnLookupFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.db.Close())

	_, err := env.agent.Upload(ctx, "candidates.csv", strings.NewReader("Full Name,Email\nAsha,asha@example.com\n"))
	require.Error(t, err)

	uploads, err := env.agent.ListUploads(ctx)
	require.NoError(t, err)
	assert.Empty(t, uploads)
}

func TestUpload_RejectsUnsupportedFile(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.agent.Upload(context.Background(), "resume.pdf", strings.NewReader("%PDF"))
	assert.ErrorIs(t, err, ingestion.ErrUnsupportedFormat)
}

func TestRemember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	n, err := env.agent.Remember(ctx, []models.MappingPair{
		{Uploaded: "Cand Nm", Matched: "candidate_name"},
		{Uploaded: "Source", Matched: models.NotNeeded},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = env.agent.Remember(ctx, nil)
	assert.ErrorIs(t, err, ErrNoPairs)

	learned, err := env.agent.LearnedMappings(ctx)
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, "candnm", learned[0].UploadedColNorm)
}

func TestMappingSummary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	preview, err := env.agent.ParseText(ctx, "Full Name,Email\nAsha,a@example.com\nRavi,r@example.com\n")
	require.NoError(t, err)

	sum, err := env.agent.MappingSummary(ctx, preview.UploadID, nameEmailMapping())
	require.NoError(t, err)
	assert.Equal(t, models.MappingSummary{TotalRows: 2, MatchedCount: 2, NotNeededCount: 1}, *sum)
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          []models.Row{{"Full Name": "Asha Verma"}},
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)
	table, err := env.repo.ListCandidates(ctx, env.reqID, models.CandidateFilter{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	id := mustParseID(t, table.Rows[0][0])

	err = env.agent.UpdateStatus(ctx, id, models.StatusUpdate{CallingStatus: "Maybe later"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = env.agent.UpdateStatus(ctx, id, models.StatusUpdate{InterviewDate: "next week"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = env.agent.UpdateStatus(ctx, id, models.StatusUpdate{ProfileStatus: "R1 scheduled", InterviewDate: "2026-10-20", InterviewTime: "10:30"})
	require.NoError(t, err)

	err = env.agent.UpdateStatus(ctx, id+100, models.StatusUpdate{ProfileStatus: "Drop"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestExportCandidates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agent.Commit(ctx, models.CommitRequest{
		RequirementID: env.reqID,
		Rows:          threeRows(),
		Mappings:      nameEmailMapping(),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	name, err := env.agent.ExportCandidates(ctx, env.reqID, models.CandidateFilter{Name: "ravi"}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "candidates_req_1_20261017_0930.xlsx", name)
	assert.NotZero(t, buf.Len())

	_, err = env.agent.ExportCandidates(ctx, env.reqID+5, models.CandidateFilter{}, &buf)
	assert.ErrorIs(t, err, ErrInvalidRequirement)
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

func mustParseID(t *testing.T, s string) int64 {
	t.Helper()
	id, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return id
}
