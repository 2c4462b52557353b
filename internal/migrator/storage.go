package migrator

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mirajehossain/deskmigrate/internal/dialect"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Storage reads and writes the migration history table.
type Storage struct {
	DB      DBTX
	Table   string
	Dialect dialect.Dialect
}

// WithTx returns a Storage writing through tx.
func (s *Storage) WithTx(tx *sql.Tx) *Storage {
	return &Storage{DB: tx, Table: s.Table, Dialect: s.Dialect}
}

func (s *Storage) table() string { return s.Dialect.Quote(s.Table) }

func (s *Storage) GetAll(ctx context.Context) (map[string]Row, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM %s`, dialect.HistoryColumns, s.table()))
	if err != nil {
		return nil, err
	}
	out := map[string]Row{}
	err = scanRows(rows, func(r Row) { out[r.Key()] = r })
	return out, err
}

func (s *Storage) MaxExecutionOrder(ctx context.Context) (int64, error) {
	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(execution_order), 0) FROM %s`, s.table()))
	var max int64
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return max, nil
}

func (s *Storage) Upsert(ctx context.Context, r Row) error {
	_, err := s.DB.ExecContext(ctx, s.Dialect.UpsertHistory(s.Table),
		r.Version, r.Name, r.Checksum, r.AppliedAt, r.AppliedBy, r.DurationMS, r.Status, r.ExecutionOrder, r.RunID,
	)
	return err
}

func (s *Storage) Delete(ctx context.Context, version, name string) error {
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE version=%s AND name=%s`,
		s.table(), s.Dialect.Placeholder(1), s.Dialect.Placeholder(2)), version, name)
	return err
}

// LastApplied returns up to n successful rows, newest execution first.
func (s *Storage) LastApplied(ctx context.Context, n int) ([]Row, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s FROM %s WHERE status='success' ORDER BY execution_order DESC LIMIT %s`,
		dialect.HistoryColumns, s.table(), s.Dialect.Placeholder(1)), n)
	if err != nil {
		return nil, err
	}
	var out []Row
	err = scanRows(rows, func(r Row) { out = append(out, r) })
	return out, err
}

func scanRows(rows *sql.Rows, each func(Row)) error {
	defer rows.Close()
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &r.AppliedAt, &r.AppliedBy, &r.DurationMS, &r.Status, &r.ExecutionOrder, &r.RunID); err != nil {
			return err
		}
		each(r)
	}
	return rows.Err()
}
