package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/export"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/fmuoria/recruit-crm/internal/validation"
)

// Requirement looks up a requirement, mapping a miss to ErrInvalidRequirement
func (a *ImportAgent) Requirement(ctx context.Context, id int64) (*models.Requirement, error) {
	req, err := a.candidates.Requirement(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: requirement_id %d", ErrInvalidRequirement, id)
	}
	return req, err
}

// Candidates lists a requirement's candidates
func (a *ImportAgent) Candidates(ctx context.Context, requirementID int64, filter models.CandidateFilter) (*models.CandidateTable, error) {
	if _, err := a.Requirement(ctx, requirementID); err != nil {
		return nil, err
	}
	return a.candidates.ListCandidates(ctx, requirementID, filter)
}

// ExportCandidates writes the filtered candidates of a requirement as XLSX and
// returns the suggested download name.
func (a *ImportAgent) ExportCandidates(ctx context.Context, requirementID int64, filter models.CandidateFilter, w io.Writer) (string, error) {
	table, err := a.Candidates(ctx, requirementID, filter)
	if err != nil {
		return "", err
	}
	if err := export.WriteCandidates(table, w); err != nil {
		return "", err
	}
	a.log.Info().Int64("requirement_id", requirementID).Int("rows", len(table.Rows)).Msg("candidates exported")
	return export.Filename(requirementID, a.now()), nil
}

// UpdateStatus changes a candidate's calling/profile status and interview slot.
// Statuses outside the controlled vocabularies are rejected.
func (a *ImportAgent) UpdateStatus(ctx context.Context, candidateID int64, u models.StatusUpdate) error {
	u.CallingStatus = strings.TrimSpace(u.CallingStatus)
	u.ProfileStatus = strings.TrimSpace(u.ProfileStatus)
	u.InterviewDate = strings.TrimSpace(u.InterviewDate)
	u.InterviewTime = strings.TrimSpace(u.InterviewTime)

	if u.CallingStatus != "" && !validation.ValidCallingStatus(u.CallingStatus) {
		return fmt.Errorf("%w: Invalid calling_status", ErrInvalidStatus)
	}
	if u.ProfileStatus != "" && !validation.ValidProfileStatus(u.ProfileStatus) {
		return fmt.Errorf("%w: Invalid profile_status", ErrInvalidStatus)
	}
	if u.InterviewDate != "" && !validation.IsDate(u.InterviewDate) {
		return fmt.Errorf("%w: Invalid interview_date (use YYYY-MM-DD)", ErrInvalidStatus)
	}
	return a.candidates.UpdateStatus(ctx, candidateID, u)
}
