package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/fmuoria/recruit-crm/internal/validation"
)

// rowDBError is all a client learns about a failed insert; the cause is logged
const rowDBError = "DB error"

// DuplicateMappingError names the column two headers were mapped to
type DuplicateMappingError struct {
	Field string
}

func (e *DuplicateMappingError) Error() string { return "Duplicate mapping to " + e.Field }

func (e *DuplicateMappingError) Is(target error) bool { return target == ErrDuplicateMapping }

// target is one confirmed header to column assignment
type target struct {
	header string
	field  string
}

// skipTarget reports mapping choices that mean "do not import"
func skipTarget(field string) bool {
	switch strings.TrimSpace(field) {
	case "", "ignore", "No need to add", models.NotNeeded:
		return true
	}
	return false
}

// targetsFrom drops skipped entries and rejects two headers feeding one column.
// A mapping with nothing left to import is ErrNoMapping.
func targetsFrom(pairs models.ColumnMappings) ([]target, error) {
	used := make(map[string]bool, len(pairs))
	out := make([]target, 0, len(pairs))
	for _, p := range pairs {
		field := strings.TrimSpace(p.Matched)
		if skipTarget(field) {
			continue
		}
		if used[field] {
			return nil, &DuplicateMappingError{Field: field}
		}
		used[field] = true
		out = append(out, target{header: p.Uploaded, field: field})
	}
	if len(out) == 0 {
		return nil, ErrNoMapping
	}
	return out, nil
}

// applyTargets keeps only the mapped headers, renamed to their columns
func applyTargets(row models.Row, targets []target) models.Row {
	out := make(models.Row, len(targets))
	for _, t := range targets {
		if v, ok := row[t.header]; ok {
			out[t.field] = v
		}
	}
	return out
}

func fieldsOf(targets []target) []string {
	out := make([]string, len(targets))
	for i, t := range targets {
		out[i] = t.field
	}
	return out
}

// rowsFor returns inline rows when given, else the rows of the upload session
func (a *ImportAgent) rowsFor(ctx context.Context, uploadID string, rows []models.Row) ([]models.Row, error) {
	if len(rows) > 0 || uploadID == "" {
		return rows, nil
	}
	sess, err := a.sessions.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	return sess.Rows, nil
}

// Validate maps, defaults and checks rows without writing anything. Duplicate
// emails and phones inside the batch come back as warnings.
func (a *ImportAgent) Validate(ctx context.Context, req models.ValidateRequest) (*models.ValidateResult, error) {
	if req.UploadID == "" && len(req.Rows) == 0 {
		return nil, ErrNoRows
	}
	targets, err := targetsFrom(req.Mapping)
	if err != nil {
		return nil, err
	}
	rows, err := a.rowsFor(ctx, req.UploadID, req.Rows)
	if err != nil {
		return nil, err
	}

	now := a.now()
	res := &models.ValidateResult{
		UploadID: req.UploadID,
		Columns:  fieldsOf(targets),
		Rows:     make([]models.ValidatedRow, 0, len(rows)),
	}
	for i, raw := range rows {
		data := validation.NormalizeRow(applyTargets(raw, targets), now)
		vr := models.ValidatedRow{RowIndex: i, Data: data, Status: "ok", Errors: []string{}}
		if errs := validation.ValidateRow(data); len(errs) > 0 {
			vr.Status = "error"
			vr.Errors = errs
		}
		res.Rows = append(res.Rows, vr)
	}
	validation.ReviewDuplicates(res.Rows)
	return res, nil
}

// Commit writes the valid rows of a batch to a requirement. Invalid rows and
// rows the database refused are returned, never fatal. Learned mappings are
// reinforced only once at least one row is durably inserted.
func (a *ImportAgent) Commit(ctx context.Context, req models.CommitRequest) (*models.CommitResult, error) {
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "" {
		mode = ModeAll
	}
	if mode != ModeAll && mode != ModeDraft {
		return nil, ErrInvalidMode
	}
	if req.RequirementID <= 0 {
		return nil, fmt.Errorf("%w: requirement_id %d", ErrInvalidRequirement, req.RequirementID)
	}

	targets, err := targetsFrom(req.Mappings)
	if err != nil {
		return nil, err
	}
	rows, err := a.rowsFor(ctx, req.UploadID, req.Rows)
	if err != nil {
		return nil, err
	}

	res := &models.CommitResult{Invalid: []models.InvalidRow{}}
	if len(rows) == 0 {
		return res, nil
	}

	requirement, err := a.candidates.Requirement(ctx, req.RequirementID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: requirement_id %d", ErrInvalidRequirement, req.RequirementID)
	}
	if err != nil {
		return nil, err
	}

	now := a.now()
	total := len(rows)
	pending := make([]storage.InsertRow, 0, total)
	for i, raw := range rows {
		a.reportProgress(i, total, "Validating rows...")

		mapped := applyTargets(raw, targets)
		if validation.IsEmptyRow(mapped) {
			continue
		}
		data := validation.NormalizeRow(mapped, now)
		if errs := validation.ValidateRow(data); len(errs) > 0 {
			res.Invalid = append(res.Invalid, models.InvalidRow{RowIndex: i, Errors: errs})
			continue
		}
		pending = append(pending, storage.InsertRow{Index: i, Data: data})
	}

	a.reportProgress(total, total, fmt.Sprintf("Inserting %d rows...", len(pending)))
	inserted, rowErrs, err := a.candidates.InsertRows(ctx, req.RequirementID, pending, req.AddedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to insert candidates: %w", err)
	}
	for _, re := range rowErrs {
		a.log.Warn().Err(re.Err).Int("row_index", re.Index).Int64("requirement_id", req.RequirementID).Msg("candidate insert failed")
		res.Invalid = append(res.Invalid, models.InvalidRow{RowIndex: re.Index, Errors: []string{rowDBError}})
	}
	sort.SliceStable(res.Invalid, func(i, j int) bool { return res.Invalid[i].RowIndex < res.Invalid[j].RowIndex })
	res.Inserted = inserted

	if mode == ModeDraft && len(res.Invalid) > 0 {
		res.Message = DraftMessage
	}

	a.log.Info().
		Int64("requirement_id", req.RequirementID).
		Str("mode", mode).
		Int("inserted", inserted).
		Int("invalid", len(res.Invalid)).
		Msg("commit finished")

	if inserted == 0 {
		return res, nil
	}

	pairs := make([]models.MappingPair, len(targets))
	for i, t := range targets {
		pairs[i] = models.MappingPair{Uploaded: t.header, Matched: t.field}
	}
	if _, err := a.memory.ReinforcePairs(ctx, pairs); err != nil {
		a.log.Warn().Err(err).Msg("failed to reinforce learned mappings")
	}

	a.notifySummary(ctx, models.ImportSummary{
		Requirement: *requirement,
		Inserted:    inserted,
		Invalid:     len(res.Invalid),
		Mode:        mode,
		Fields:      fieldsOf(targets),
		At:          now,
	})
	a.reportProgress(total, total, "Import complete")
	return res, nil
}

func (a *ImportAgent) notifySummary(ctx context.Context, s models.ImportSummary) {
	msg, err := a.templates.Summary(s, a.recipients)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to render import summary")
		return
	}
	if err := a.notifier.Send(ctx, msg); err != nil {
		a.log.Warn().Err(err).Msg("failed to send import summary")
	}
}
