package models

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// NotNeeded is the operator's explicit "do not import this column" choice.
// It is offered next to the real columns but is never a storage target.
const NotNeeded = "Not Needed"

// Status labels carried by a MappingDecision
const (
	StatusForcedNormalized = "Matched (Forced: normalized)"
	StatusForcedNearest    = "Matched (Forced: nearest)"
	StatusFuzzy            = "Matched (Fuzzy)"
	StatusNotMatched       = "Not Matched"
)

// Row is one uploaded record keyed by header (or by candidate column once mapped)
type Row map[string]string

// Table is parsed tabular data with headers in sheet order
type Table struct {
	Headers   []string `json:"headers"`
	Rows      []Row    `json:"rows"`
	HasHeader bool     `json:"has_header"`
}

// UploadSession ties an opaque upload id to parsed data
type UploadSession struct {
	ID        string    `json:"id"`
	Headers   []string  `json:"headers"`
	Rows      []Row     `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// MappingDecision is the resolver's verdict for one uploaded header
type MappingDecision struct {
	Uploaded   string  `json:"uploaded"`
	Matched    string  `json:"matched"` // empty when unmapped, encoded as null
	Status     string  `json:"status"`
	Confidence float64 `json:"confidence"` // 0-1, three decimals
	Reason     string  `json:"reason"`
}

// MarshalJSON encodes an unmapped decision with "matched": null
func (d MappingDecision) MarshalJSON() ([]byte, error) {
	type plain MappingDecision
	var matched *string
	if d.Matched != "" {
		matched = &d.Matched
	}
	return json.Marshal(struct {
		plain
		Matched *string `json:"matched"`
	}{plain(d), matched})
}

// LearnedMapping is one row of the learned mapping memory
type LearnedMapping struct {
	UploadedColNorm string    `json:"uploaded_col_norm"`
	UploadedColRaw  string    `json:"uploaded_col_raw"`
	DBCol           string    `json:"db_col"`
	Weight          int       `json:"weight"`
	Confidence      float64   `json:"confidence"`
	LastUsed        time.Time `json:"last_used"`
}

// MappingPair is a human-confirmed header to column pairing
type MappingPair struct {
	Uploaded string `json:"uploaded"`
	Matched  string `json:"matched"`
}

// ColumnMappings is a confirmed mapping in sheet order. It decodes from either a
// list of {sheet_column, system_field} / {uploaded, matched} objects or a plain
// {"header": "field"} object.
type ColumnMappings []MappingPair

// UnmarshalJSON accepts the list and object encodings
func (m *ColumnMappings) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == "" {
		*m = nil
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]*string
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(ColumnMappings, 0, len(obj))
		for _, k := range keys {
			pair := MappingPair{Uploaded: k}
			if v := obj[k]; v != nil {
				pair.Matched = *v
			}
			out = append(out, pair)
		}
		*m = out
		return nil
	}

	var list []struct {
		SheetColumn string  `json:"sheet_column"`
		SystemField *string `json:"system_field"`
		Uploaded    string  `json:"uploaded"`
		Matched     *string `json:"matched"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	out := make(ColumnMappings, 0, len(list))
	for _, item := range list {
		pair := MappingPair{Uploaded: item.SheetColumn}
		if item.SystemField != nil {
			pair.Matched = *item.SystemField
		}
		if pair.Uploaded == "" {
			pair.Uploaded = item.Uploaded
		}
		if pair.Matched == "" && item.Matched != nil {
			pair.Matched = *item.Matched
		}
		out = append(out, pair)
	}
	*m = out
	return nil
}

// ParseResult is the preview returned for an upload or pasted text
type ParseResult struct {
	UploadID         string              `json:"upload_id"`
	Columns          []string            `json:"columns"`
	SystemFields     []string            `json:"system_fields"`
	Samples          map[string][]string `json:"samples"`
	SuggestedMapping map[string]*string  `json:"suggested_mapping"`
	UnmappedHeaders  []string            `json:"unmapped_headers"`
	HasHeader        bool                `json:"has_header"`
	TotalRows        int                 `json:"total_rows"`
}

// UploadResult is the response of the one-shot upload-and-resolve call
type UploadResult struct {
	UploadID  string            `json:"upload_id"`
	Mappings  []MappingDecision `json:"mappings"`
	DBColumns []string          `json:"db_columns"`
	TotalRows int               `json:"total_rows"`
}

// ValidateRequest carries rows (inline or by upload id) and the mapping to apply
type ValidateRequest struct {
	UploadID string         `json:"upload_id"`
	Rows     []Row          `json:"rows"`
	Mapping  ColumnMappings `json:"mapping"`
}

// ValidatedRow is one row after mapping, defaulting and validation
type ValidatedRow struct {
	RowIndex int      `json:"row_index"`
	Data     Row      `json:"data"`
	Status   string   `json:"status"` // "ok" or "error"
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidateResult is the outcome of a validation pass
type ValidateResult struct {
	UploadID string         `json:"upload_id,omitempty"`
	Columns  []string       `json:"columns"`
	Rows     []ValidatedRow `json:"rows"`
}

// CommitRequest asks for the rows of an upload to be written to a requirement
type CommitRequest struct {
	RequirementID int64          `json:"requirement_id"`
	UploadID      string         `json:"upload_id"`
	Rows          []Row          `json:"rows"`
	Mappings      ColumnMappings `json:"mappings"`
	Mode          string         `json:"mode"` // "all" or "draft"
	AddedBy       string         `json:"added_by"`
}

// InvalidRow is a row that was not inserted, with its reasons
type InvalidRow struct {
	RowIndex int      `json:"row_index"`
	Errors   []string `json:"errors"`
}

// CommitResult reports how a commit went
type CommitResult struct {
	Inserted int          `json:"inserted"`
	Invalid  []InvalidRow `json:"invalid"`
	Message  string       `json:"message,omitempty"`
}

// MappingSummary counts decisions for an upload
type MappingSummary struct {
	TotalRows      int `json:"total_rows"`
	MatchedCount   int `json:"matched_count"`
	NotNeededCount int `json:"not_needed_count"`
}

// Requirement is the job requirement candidates are imported into
type Requirement struct {
	ID         int64  `json:"id"`
	Name       string `json:"requirement_name"`
	ClientName string `json:"client_name"`
}

// CandidateFilter narrows a candidate listing. IDs take precedence over the text filters.
type CandidateFilter struct {
	Name     string
	Phone    string
	Email    string
	Location string
	IDs      []int64
}

// CandidateTable is a flat candidate listing in column order
type CandidateTable struct {
	Columns []string
	Rows    [][]string
}

// StatusUpdate is an inline pipeline change for one candidate
type StatusUpdate struct {
	CallingStatus string `json:"calling_status"`
	ProfileStatus string `json:"profile_status"`
	InterviewDate string `json:"interview_date"`
	InterviewTime string `json:"interview_time"`
}

// ImportSummary is what gets reported to recruiters after a commit
type ImportSummary struct {
	Requirement Requirement
	Inserted    int
	Invalid     int
	Mode        string
	Fields      []string
	At          time.Time
}
