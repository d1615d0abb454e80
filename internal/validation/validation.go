// Package validation defaults, normalizes and checks mapped candidate rows.
// It never fails a batch: every problem becomes a message on its row.
package validation

import (
	"strings"
	"time"

	"github.com/fmuoria/recruit-crm/internal/models"
)

// Error messages surfaced to operators
const (
	MsgNameRequired    = "Candidate name is required."
	MsgInvalidDate     = "Invalid application_date (use YYYY-MM-DD)."
	MsgCallingStatus   = "calling_status must use predefined options."
	MsgProfileStatus   = "profile_status must use predefined options."
	WarnDuplicateEmail = "Duplicate Email"
	WarnDuplicatePhone = "Duplicate Phone"
)

// DateLayout is the ISO calendar date every stored date uses
const DateLayout = "2006-01-02"

// CallingStatuses is the controlled vocabulary for calling_status
var CallingStatuses = []string{"Not answering", "Not reachable", "Disconnected", "Screen select"}

// ProfileStatuses is the controlled vocabulary for profile_status
var ProfileStatuses = []string{
	"R2 Pending", "R3 Pending", "R1 to be schedule", "R2 scheduled", "R3 scheduled",
	"R1 scheduled", "R1 FBP", "R2 FBP", "R3 FBP", "HR Round Pending", "HR round done",
	"Offer letter Pending", "Offer letter released", "Draft offer released", "Drop",
}

var (
	callingSet = toSet(CallingStatuses)
	profileSet = toSet(ProfileStatuses)
)

// booleanFields hold yes/no answers
var booleanFields = []string{"pf_docs_confirm"}

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// ValidCallingStatus reports whether v is an allowed calling_status
func ValidCallingStatus(v string) bool { return callingSet[v] }

// ValidProfileStatus reports whether v is an allowed profile_status
func ValidProfileStatus(v string) bool { return profileSet[v] }

// NormalizeRow returns a trimmed copy of row with application_date defaulted
// to now's calendar date and yes/no answers folded to "Yes"/"No".
func NormalizeRow(row models.Row, now time.Time) models.Row {
	out := make(models.Row, len(row)+1)
	for k, v := range row {
		out[k] = strings.TrimSpace(v)
	}
	if out["application_date"] == "" {
		out["application_date"] = now.Format(DateLayout)
	}
	for _, f := range booleanFields {
		if v, ok := out[f]; ok {
			out[f] = normalizeYesNo(v)
		}
	}
	return out
}

func normalizeYesNo(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "1":
		return "Yes"
	case "no", "n", "false", "0":
		return "No"
	default:
		return v
	}
}

// ValidateRow lists what is wrong with a normalized row. An empty result
// means the row can be inserted.
func ValidateRow(row models.Row) []string {
	var errs []string
	if strings.TrimSpace(row["candidate_name"]) == "" {
		errs = append(errs, MsgNameRequired)
	}
	if d := strings.TrimSpace(row["application_date"]); d != "" && !isISODate(d) {
		errs = append(errs, MsgInvalidDate)
	}
	if v := strings.TrimSpace(row["calling_status"]); v != "" && !ValidCallingStatus(v) {
		errs = append(errs, MsgCallingStatus)
	}
	if v := strings.TrimSpace(row["profile_status"]); v != "" && !ValidProfileStatus(v) {
		errs = append(errs, MsgProfileStatus)
	}
	return errs
}

// IsDate reports whether s is a plain YYYY-MM-DD date
func IsDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func isISODate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// IsEmptyRow reports whether every value is blank
func IsEmptyRow(row models.Row) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
