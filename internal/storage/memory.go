package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/mapping"
	"github.com/fmuoria/recruit-crm/internal/models"
)

// Reinforcement defaults: a first confirmation lands above the resolver's
// soft threshold, four more reach the cap.
const (
	DefaultInitialConfidence = 0.7
	DefaultConfidenceStep    = 0.1
)

const memoryTablePostgres = `
	CREATE TABLE IF NOT EXISTS import_mapping_memory (
		id                SERIAL PRIMARY KEY,
		uploaded_col_norm TEXT NOT NULL,
		uploaded_col_raw  TEXT,
		db_col            TEXT NOT NULL,
		weight            INTEGER DEFAULT 1,
		confidence        NUMERIC DEFAULT 1.0,
		last_used         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (uploaded_col_norm, db_col)
	)
`

const memoryTableSQLite = `
	CREATE TABLE IF NOT EXISTS import_mapping_memory (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		uploaded_col_norm TEXT NOT NULL,
		uploaded_col_raw  TEXT,
		db_col            TEXT NOT NULL,
		weight            INTEGER DEFAULT 1,
		confidence        REAL DEFAULT 1.0,
		last_used         TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (uploaded_col_norm, db_col)
	)
`

// reinforceQuery is a single atomic upsert so concurrent confirmations of the
// same pair never lose an increment.
const reinforceQuery = `
	INSERT INTO import_mapping_memory (uploaded_col_norm, uploaded_col_raw, db_col, weight, confidence, last_used)
	VALUES ($1, $2, $3, 1, $4, CURRENT_TIMESTAMP)
	ON CONFLICT (uploaded_col_norm, db_col) DO UPDATE SET
		weight = import_mapping_memory.weight + 1,
		confidence = ROUND(CASE
			WHEN COALESCE(import_mapping_memory.confidence, 1.0) + $5 > 1.0 THEN 1.0
			ELSE COALESCE(import_mapping_memory.confidence, 1.0) + $5
		END, 4),
		uploaded_col_raw = COALESCE(excluded.uploaded_col_raw, import_mapping_memory.uploaded_col_raw),
		last_used = CURRENT_TIMESTAMP
`

const memoryColumns = `uploaded_col_norm, uploaded_col_raw, db_col, weight, confidence, last_used`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// MappingMemory is the learned header to column store.
type MappingMemory struct {
	db      DB
	driver  string
	initial float64
	step    float64
}

// NewMappingMemory builds the store. Non-positive constants fall back to the defaults.
func NewMappingMemory(db DB, driver string, initial, step float64) *MappingMemory {
	if initial <= 0 || initial > 1 {
		initial = DefaultInitialConfidence
	}
	if step <= 0 {
		step = DefaultConfidenceStep
	}
	return &MappingMemory{db: db, driver: driver, initial: initial, step: step}
}

// EnsureStore creates the memory table if it does not exist.
func (m *MappingMemory) EnsureStore(ctx context.Context) error {
	ddl := memoryTableSQLite
	if m.driver == DriverPostgres {
		ddl = memoryTablePostgres
	}
	if _, err := m.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create mapping memory: %w", err)
	}
	return nil
}

// Load returns what has been learned for a normalized header, heaviest first.
func (m *MappingMemory) Load(ctx context.Context, token string) ([]models.LearnedMapping, error) {
	if token == "" {
		return nil, nil
	}
	query := `SELECT ` + memoryColumns + ` FROM import_mapping_memory
		WHERE uploaded_col_norm = $1
		ORDER BY weight DESC, confidence DESC, db_col`
	rows, err := m.db.QueryContext(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("failed to load learned mappings: %w", err)
	}
	defer rows.Close()
	return scanLearned(rows)
}

// List returns the whole memory ordered by weight.
func (m *MappingMemory) List(ctx context.Context) ([]models.LearnedMapping, error) {
	query := `SELECT ` + memoryColumns + ` FROM import_mapping_memory
		ORDER BY weight DESC, uploaded_col_norm, db_col`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list learned mappings: %w", err)
	}
	defer rows.Close()
	return scanLearned(rows)
}

// Reinforce upserts one confirmation of token -> field.
func (m *MappingMemory) Reinforce(ctx context.Context, token, raw, field string) error {
	return m.reinforce(ctx, m.db, token, raw, field)
}

func (m *MappingMemory) reinforce(ctx context.Context, ex execer, token, raw, field string) error {
	if token == "" || field == "" {
		return fmt.Errorf("reinforce needs a token and a field")
	}
	var rawArg interface{}
	if raw != "" {
		rawArg = raw
	}
	if _, err := ex.ExecContext(ctx, reinforceQuery, token, rawArg, field, m.initial, m.step); err != nil {
		return fmt.Errorf("failed to reinforce %s -> %s: %w", token, field, err)
	}
	return nil
}

// ReinforcePairs normalizes each uploaded header and upserts the confirmed
// pairs in one transaction. Pairs with an empty side or pointing at
// "Not Needed" are skipped. It returns how many upserts ran.
func (m *MappingMemory) ReinforcePairs(ctx context.Context, pairs []models.MappingPair) (int, error) {
	type entry struct{ token, raw, field string }
	var entries []entry
	for _, p := range pairs {
		raw := strings.TrimSpace(p.Uploaded)
		field := strings.TrimSpace(p.Matched)
		if raw == "" || field == "" || field == models.NotNeeded {
			continue
		}
		token := mapping.Normalize(raw)
		if token == "" {
			continue
		}
		entries = append(entries, entry{token, raw, field})
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, e := range entries {
		if err := m.reinforce(ctx, tx, e.token, e.raw, e.field); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit mapping memory: %w", err)
	}
	return len(entries), nil
}

func scanLearned(rows *sql.Rows) ([]models.LearnedMapping, error) {
	var out []models.LearnedMapping
	for rows.Next() {
		var (
			lm         models.LearnedMapping
			raw        sql.NullString
			weight     sql.NullInt64
			confidence sql.NullFloat64
			lastUsed   sql.NullTime
		)
		if err := rows.Scan(&lm.UploadedColNorm, &raw, &lm.DBCol, &weight, &confidence, &lastUsed); err != nil {
			return nil, fmt.Errorf("failed to scan learned mapping: %w", err)
		}
		lm.UploadedColRaw = raw.String
		lm.Weight = int(weight.Int64)
		lm.Confidence = 1.0
		if confidence.Valid {
			lm.Confidence = confidence.Float64
		}
		lm.LastUsed = lastUsed.Time
		out = append(out, lm)
	}
	return out, rows.Err()
}
