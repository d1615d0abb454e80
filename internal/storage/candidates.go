package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fmuoria/recruit-crm/internal/models"
)

// systemColumns are owned by the service and never offered as mapping targets.
var systemColumns = map[string]bool{"id": true, "requirement_id": true}

// InsertRow is one mapped row headed for the candidates table.
type InsertRow struct {
	Index int
	Data  models.Row
}

// RowError records a row the database refused.
type RowError struct {
	Index int
	Err   error
}

// CandidateRepository handles requirements and candidates.
type CandidateRepository struct {
	db     DB
	driver string
}

// NewCandidateRepository creates a new candidate repository.
func NewCandidateRepository(db DB, driver string) *CandidateRepository {
	return &CandidateRepository{db: db, driver: driver}
}

// Columns introspects the candidates table and returns the mappable columns
// in table order.
func (r *CandidateRepository) Columns(ctx context.Context) ([]string, error) {
	query := `SELECT name FROM pragma_table_info('candidates') ORDER BY cid`
	if r.driver == DriverPostgres {
		query = `SELECT column_name FROM information_schema.columns
			WHERE table_name = 'candidates' AND table_schema = current_schema()
			ORDER BY ordinal_position`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect candidates: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		if systemColumns[name] {
			continue
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("candidates table has no columns; run migrate first")
	}
	return cols, nil
}

// CreateRequirement adds a requirement and returns its id.
func (r *CandidateRepository) CreateRequirement(ctx context.Context, name, client string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO requirements (requirement_name, client_name) VALUES ($1, $2) RETURNING id`,
		name, client,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create requirement: %w", err)
	}
	return id, nil
}

// Requirement retrieves a requirement by ID.
func (r *CandidateRepository) Requirement(ctx context.Context, id int64) (*models.Requirement, error) {
	req := &models.Requirement{}
	var client sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, requirement_name, client_name FROM requirements WHERE id = $1`, id,
	).Scan(&req.ID, &req.Name, &client)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load requirement %d: %w", id, err)
	}
	req.ClientName = client.String
	return req, nil
}

// InsertRows writes rows for a requirement inside one transaction. Each row
// runs under its own savepoint, so a refused row is rolled back alone and
// reported in failed while the rest go in. Only columns present in the
// table are written; empty values are left to the column default.
func (r *CandidateRepository) InsertRows(ctx context.Context, requirementID int64, rows []InsertRow, addedBy string) (int, []RowError, error) {
	if len(rows) == 0 {
		return 0, nil, nil
	}

	cols, err := r.Columns(ctx)
	if err != nil {
		return 0, nil, err
	}
	valid := make(map[string]bool, len(cols))
	for _, c := range cols {
		valid[c] = true
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inserted := 0
	var failed []RowError
	for _, row := range rows {
		query, args := buildInsert(cols, valid, requirementID, row.Data, addedBy)

		if _, err := tx.ExecContext(ctx, "SAVEPOINT candidate_row"); err != nil {
			return 0, nil, fmt.Errorf("failed to open savepoint: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			failed = append(failed, RowError{Index: row.Index, Err: err})
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT candidate_row"); rbErr != nil {
				return 0, nil, fmt.Errorf("failed to roll back row %d: %w", row.Index, rbErr)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT candidate_row"); err != nil {
			return 0, nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("failed to commit candidates: %w", err)
	}
	return inserted, failed, nil
}

func buildInsert(cols []string, valid map[string]bool, requirementID int64, data models.Row, addedBy string) (string, []interface{}) {
	names := []string{quoteIdent("requirement_id")}
	args := []interface{}{requirementID}
	for _, c := range cols {
		v := strings.TrimSpace(data[c])
		if v == "" {
			continue
		}
		names = append(names, quoteIdent(c))
		args = append(args, v)
	}
	if addedBy != "" && valid["added_by"] && strings.TrimSpace(data["added_by"]) == "" {
		names = append(names, quoteIdent("added_by"))
		args = append(args, addedBy)
	}

	placeholders := make([]string, len(args))
	for i := range args {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf("INSERT INTO candidates (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	return query, args
}

// ListCandidates returns a requirement's candidates as text, id first.
// filter.IDs, when set, replaces the text filters.
func (r *CandidateRepository) ListCandidates(ctx context.Context, requirementID int64, filter models.CandidateFilter) (*models.CandidateTable, error) {
	cols, err := r.Columns(ctx)
	if err != nil {
		return nil, err
	}
	cols = append([]string{"id"}, cols...)

	selects := make([]string, len(cols))
	for i, c := range cols {
		selects[i] = fmt.Sprintf("CAST(%s AS TEXT)", quoteIdent(c))
	}

	where := []string{"requirement_id = $1"}
	args := []interface{}{requirementID}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.IDs) > 0 {
		ph := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			ph[i] = next(id)
		}
		where = append(where, "id IN ("+strings.Join(ph, ", ")+")")
	} else {
		like := func(col, v string) {
			if v = strings.TrimSpace(v); v != "" {
				where = append(where, fmt.Sprintf("LOWER(%s) LIKE %s", quoteIdent(col), next("%"+strings.ToLower(v)+"%")))
			}
		}
		like("candidate_name", filter.Name)
		like("phones", filter.Phone)
		like("emails", filter.Email)
		like("current_location", filter.Location)
	}

	query := fmt.Sprintf("SELECT %s FROM candidates WHERE %s ORDER BY id",
		strings.Join(selects, ", "), strings.Join(where, " AND "))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	table := &models.CandidateTable{Columns: cols}
	for rows.Next() {
		vals := make([]sql.NullString, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		out := make([]string, len(cols))
		for i, v := range vals {
			out[i] = v.String
		}
		table.Rows = append(table.Rows, out)
	}
	return table, rows.Err()
}

// UpdateStatus applies an inline pipeline change. Empty statuses are left
// alone; empty interview fields clear the stored value.
func (r *CandidateRepository) UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error {
	var sets []string
	var args []interface{}
	set := func(col string, v interface{}) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if v := strings.TrimSpace(u.CallingStatus); v != "" {
		set("calling_status", v)
	}
	if v := strings.TrimSpace(u.ProfileStatus); v != "" {
		set("profile_status", v)
	}
	set("interview_date", nullIfEmpty(u.InterviewDate))
	set("interview_time", nullIfEmpty(u.InterviewTime))
	sets = append(sets, "updated_date = CURRENT_TIMESTAMP")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE candidates SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update candidate %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update candidate %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}
