package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fmuoria/recruit-crm/internal/ingestion"
	"github.com/fmuoria/recruit-crm/internal/mapping"
	"github.com/fmuoria/recruit-crm/internal/models"
	"github.com/fmuoria/recruit-crm/internal/notify"
	"github.com/fmuoria/recruit-crm/internal/storage"
	"github.com/rs/zerolog"
)

// Request-level errors. Everything row-scoped is reported on the row instead.
var (
	ErrDuplicateMapping   = errors.New("duplicate mapping")
	ErrInvalidRequirement = errors.New("requirement not found")
	ErrInvalidMode        = errors.New("mode must be \"all\" or \"draft\"")
	ErrNoPairs            = errors.New("no mapping pairs to remember")
	ErrInvalidStatus      = errors.New("invalid status value")
	ErrNoRows             = errors.New("upload_id or rows is required")
	ErrNoMapping          = errors.New("mapping not found or invalid format")
)

// Commit modes
const (
	ModeAll   = "all"
	ModeDraft = "draft"
)

// DraftMessage is returned by a draft commit that left rows behind
const DraftMessage = "Draft saved: valid rows inserted; fix remaining and re-save."

// ProgressCallback is called to report progress during a commit
type ProgressCallback func(current, total int, message string)

// CandidateStore is the candidate side of the relational store
type CandidateStore interface {
	Columns(ctx context.Context) ([]string, error)
	Requirement(ctx context.Context, id int64) (*models.Requirement, error)
	InsertRows(ctx context.Context, requirementID int64, rows []storage.InsertRow, addedBy string) (int, []storage.RowError, error)
	ListCandidates(ctx context.Context, requirementID int64, filter models.CandidateFilter) (*models.CandidateTable, error)
	UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error
}

// MappingStore is the learned mapping memory
type MappingStore interface {
	mapping.MemoryLoader
	List(ctx context.Context) ([]models.LearnedMapping, error)
	ReinforcePairs(ctx context.Context, pairs []models.MappingPair) (int, error)
}

// Options wires an ImportAgent. Notifier and Templates are optional.
type Options struct {
	Parser     *ingestion.Parser
	Sessions   *ingestion.SessionStore
	Resolver   *mapping.Resolver
	Memory     MappingStore
	Candidates CandidateStore
	Notifier   notify.Notifier
	Templates  *notify.Templates
	Recipients []string
	Log        zerolog.Logger
}

// ImportAgent orchestrates the candidate import flow: parse, resolve,
// validate and commit.
type ImportAgent struct {
	parser     *ingestion.Parser
	sessions   *ingestion.SessionStore
	resolver   *mapping.Resolver
	memory     MappingStore
	candidates CandidateStore
	notifier   notify.Notifier
	templates  *notify.Templates
	recipients []string
	log        zerolog.Logger
	now        func() time.Time

	mu         sync.RWMutex
	progressCb ProgressCallback
}

// NewImportAgent creates a new import agent
func NewImportAgent(opts Options) (*ImportAgent, error) {
	if opts.Sessions == nil || opts.Resolver == nil || opts.Memory == nil || opts.Candidates == nil {
		return nil, fmt.Errorf("import agent needs sessions, resolver, memory and candidates")
	}
	if opts.Parser == nil {
		opts.Parser = ingestion.NewParser(mapping.IsKnownHeader)
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.NewLogNotifier(opts.Log)
	}
	if opts.Templates == nil {
		opts.Templates = notify.NewTemplates()
	}

	return &ImportAgent{
		parser:     opts.Parser,
		sessions:   opts.Sessions,
		resolver:   opts.Resolver,
		memory:     opts.Memory,
		candidates: opts.Candidates,
		notifier:   opts.Notifier,
		templates:  opts.Templates,
		recipients: opts.Recipients,
		log:        opts.Log,
		now:        time.Now,
	}, nil
}

// SetProgressCallback sets the progress callback function
func (a *ImportAgent) SetProgressCallback(cb ProgressCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.progressCb = cb
}

// reportProgress calls the progress callback if set
func (a *ImportAgent) reportProgress(current, total int, message string) {
	a.mu.RLock()
	cb := a.progressCb
	a.mu.RUnlock()

	if cb != nil {
		cb(current, total, message)
	}
}

// Columns returns the candidate columns an upload may map onto
func (a *ImportAgent) Columns(ctx context.Context) ([]string, error) {
	cols, err := a.candidates.Columns(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidate columns: %w", err)
	}
	return cols, nil
}

// Resolve maps headers onto the live candidate columns
func (a *ImportAgent) Resolve(ctx context.Context, headers []string) ([]models.MappingDecision, []string, error) {
	cols, err := a.Columns(ctx)
	if err != nil {
		return nil, nil, err
	}
	return a.resolver.Resolve(ctx, headers, cols), cols, nil
}

// Upload parses a file, stores it as an upload session and resolves its headers
func (a *ImportAgent) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error) {
	table, err := a.parser.ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	// resolve before storing so a failed lookup leaves no mirror behind
	decisions, cols, err := a.Resolve(ctx, table.Headers)
	if err != nil {
		return nil, err
	}

	sess, err := a.sessions.Create(ctx, table)
	if err != nil {
		return nil, err
	}

	a.log.Info().
		Str("upload_id", sess.ID).
		Str("file", filename).
		Int("rows", len(table.Rows)).
		Int("headers", len(table.Headers)).
		Msg("upload resolved")

	return &models.UploadResult{
		UploadID:  sess.ID,
		Mappings:  decisions,
		DBColumns: append(append([]string(nil), cols...), models.NotNeeded),
		TotalRows: len(table.Rows),
	}, nil
}

// Parse previews an uploaded file
func (a *ImportAgent) Parse(ctx context.Context, filename string, r io.Reader) (*models.ParseResult, error) {
	table, err := a.parser.ParseFile(filename, r)
	if err != nil {
		return nil, err
	}
	return a.preview(ctx, table)
}

// ParseText previews pasted clipboard text
func (a *ImportAgent) ParseText(ctx context.Context, text string) (*models.ParseResult, error) {
	table, err := a.parser.ParseText(text)
	if err != nil {
		return nil, err
	}
	return a.preview(ctx, table)
}

func (a *ImportAgent) preview(ctx context.Context, table *models.Table) (*models.ParseResult, error) {
	sess, err := a.sessions.Create(ctx, table)
	if err != nil {
		return nil, err
	}
	decisions, cols, err := a.Resolve(ctx, table.Headers)
	if err != nil {
		return nil, err
	}

	res := &models.ParseResult{
		UploadID:         sess.ID,
		Columns:          table.Headers,
		SystemFields:     cols,
		Samples:          ingestion.Samples(table, ingestion.SampleSize),
		SuggestedMapping: make(map[string]*string, len(decisions)),
		UnmappedHeaders:  []string{},
		HasHeader:        table.HasHeader,
		TotalRows:        len(table.Rows),
	}
	for _, d := range decisions {
		if d.Matched == "" {
			res.SuggestedMapping[d.Uploaded] = nil
			res.UnmappedHeaders = append(res.UnmappedHeaders, d.Uploaded)
			continue
		}
		field := d.Matched
		res.SuggestedMapping[d.Uploaded] = &field
	}
	return res, nil
}

// Remember reinforces human-confirmed pairs without importing anything
func (a *ImportAgent) Remember(ctx context.Context, pairs []models.MappingPair) (int, error) {
	if len(pairs) == 0 {
		return 0, ErrNoPairs
	}
	n, err := a.memory.ReinforcePairs(ctx, pairs)
	if err != nil {
		return 0, fmt.Errorf("failed to remember mappings: %w", err)
	}
	return n, nil
}

// LearnedMappings lists the memory, heaviest first
func (a *ImportAgent) LearnedMappings(ctx context.Context) ([]models.LearnedMapping, error) {
	return a.memory.List(ctx)
}

// MappingSummary counts matched and skipped columns for an upload
func (a *ImportAgent) MappingSummary(ctx context.Context, uploadID string, pairs models.ColumnMappings) (*models.MappingSummary, error) {
	sess, err := a.sessions.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	sum := &models.MappingSummary{TotalRows: len(sess.Rows)}
	for _, p := range pairs {
		switch {
		case p.Matched == models.NotNeeded:
			sum.NotNeededCount++
		case p.Matched != "":
			sum.MatchedCount++
		}
	}
	return sum, nil
}

// ListUploads returns the ids of uploads still on disk
func (a *ImportAgent) ListUploads(ctx context.Context) ([]string, error) {
	return a.sessions.List(ctx)
}

// Sweep expires old uploads
func (a *ImportAgent) Sweep(ctx context.Context) (int, error) {
	return a.sessions.Sweep(ctx)
}

// Close releases the session cache
func (a *ImportAgent) Close() error {
	return a.sessions.Close()
}
