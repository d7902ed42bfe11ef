// Package records is a table-agnostic keyed record store on SQLite. Rows are
// JSON documents addressed by (table, id); filters are equality predicates on
// top-level columns.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/workbench/internal/db"
	"github.com/workbench/internal/identity"
)

// KeyColumn is the column every row is keyed by
const KeyColumn = "id"

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Error is the store's error shape. Code follows identity's record codes.
type Error struct {
	Code    string
	Message string
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode implements identity.Coder.
func (e *Error) ErrorCode() string {
	return e.Code
}

// Store implements identity.RecordStore
type Store struct {
	db *db.DB
}

// NewStore creates a record store on database
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Upsert inserts row, or overwrites the supplied columns of the existing row
// with the same id. Each supplied column replaces the stored value whole,
// null included; columns not supplied are kept.
func (s *Store) Upsert(ctx context.Context, table string, row identity.Record) error {
	if err := validateTable(table); err != nil {
		return err
	}

	id, err := keyOf(row)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	defer tx.Rollback()

	merged := identity.Record{}
	var stored string
	err = tx.QueryRowContext(ctx, "SELECT data FROM records WHERE tbl = ? AND id = ?", table, id).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	default:
		if err := json.Unmarshal([]byte(stored), &merged); err != nil {
			return fmt.Errorf("decode %s row: %w", table, err)
		}
	}
	for k, v := range row {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return &Error{Code: identity.CodeValidationFailed, Message: "row is not serializable", Details: err.Error()}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO records (tbl, id, data, updated_at) VALUES (?, ?, json(?), ?)
		ON CONFLICT (tbl, id) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`,
		table, id, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", table, id, err)
	}
	return tx.Commit()
}

// Select returns every row of table matching all filters, oldest first.
func (s *Store) Select(ctx context.Context, table string, filters ...identity.Filter) ([]identity.Record, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	query := "SELECT data FROM records WHERE tbl = ?"
	args := []any{table}

	for _, f := range filters {
		if !columnPattern.MatchString(f.Column) {
			return nil, &Error{Code: identity.CodeValidationFailed, Message: "invalid column name", Details: f.Column}
		}
		if f.Column == KeyColumn {
			query += " AND id = ?"
			args = append(args, fmt.Sprint(f.Value))
			continue
		}
		query += " AND json_extract(data, ?) = ?"
		args = append(args, "$."+f.Column, f.Value)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	defer rows.Close()

	var result []identity.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		record := identity.Record{}
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", table, err)
		}
		result = append(result, record)
	}

	return result, rows.Err()
}

// Single returns the one row matching filters. Zero rows fails with
// identity.CodeNoRows, more than one with identity.CodeMultipleRows.
func (s *Store) Single(ctx context.Context, table string, filters ...identity.Filter) (identity.Record, error) {
	rows, err := s.Select(ctx, table, filters...)
	if err != nil {
		return nil, err
	}

	switch len(rows) {
	case 0:
		return nil, &Error{
			Code:    identity.CodeNoRows,
			Message: "JSON object requested, multiple (or no) rows returned",
			Details: "The result contains 0 rows",
		}
	case 1:
		return rows[0], nil
	default:
		return nil, &Error{
			Code:    identity.CodeMultipleRows,
			Message: "JSON object requested, multiple (or no) rows returned",
			Details: fmt.Sprintf("The result contains %d rows", len(rows)),
		}
	}
}

func validateTable(table string) error {
	if !columnPattern.MatchString(table) {
		return &Error{Code: identity.CodeValidationFailed, Message: "invalid table name", Details: table}
	}
	return nil
}

func keyOf(row identity.Record) (string, error) {
	raw, ok := row[KeyColumn]
	if !ok || raw == nil {
		return "", &Error{Code: identity.CodeValidationFailed, Message: "row has no id"}
	}
	id := strings.TrimSpace(fmt.Sprint(raw))
	if id == "" {
		return "", &Error{Code: identity.CodeValidationFailed, Message: "row has an empty id"}
	}
	return id, nil
}

var _ identity.RecordStore = (*Store)(nil)
