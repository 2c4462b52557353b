// Package dialect renders DDL, introspection and history-table SQL for the
// engines deskmigrate runs against.
package dialect

import (
	"fmt"
	"strings"

	"github.com/mirajehossain/deskmigrate/internal/schema"
)

// Dialect is a schema.Dialect that also knows how to keep migration history.
type Dialect interface {
	schema.Dialect
	DriverName() string
	Placeholder(n int) string
	Quote(ident string) string
	ColumnType(t schema.DataType) (string, error)
	HistoryTableDDL(table string) string
	UpsertHistory(table string) string
}

// New returns the dialect registered under name.
func New(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", name)
}

// ConstraintName is the name given to the foreign key on table.column.
// Postgres caps identifiers at 63 bytes, so every dialect does.
func ConstraintName(table, column string) string {
	name := strings.ToLower("fk_" + table + "_" + column)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}

// HistoryColumns is the column order used by every history query.
const HistoryColumns = "version, name, checksum, applied_at, applied_by, duration_ms, status, execution_order, run_id"

func quoteWith(q, ident string) string {
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

func placeholders(d Dialect, n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.Placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// referenceClause renders "REFERENCES t (k) ON UPDATE .. ON DELETE ..".
func referenceClause(d Dialect, spec schema.ColumnSpec) string {
	ref := spec.References
	var b strings.Builder
	fmt.Fprintf(&b, "REFERENCES %s (%s)", d.Quote(ref.Model), d.Quote(ref.Key))
	if spec.OnUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", spec.OnUpdate)
	}
	if spec.OnDelete != "" {
		fmt.Fprintf(&b, " ON DELETE %s", spec.OnDelete)
	}
	return b.String()
}

// conflictUpsert is the INSERT .. ON CONFLICT form shared by Postgres and SQLite.
func conflictUpsert(d Dialect, table string) string {
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON CONFLICT (version, name) DO UPDATE SET checksum=excluded.checksum, applied_at=excluded.applied_at, applied_by=excluded.applied_by, duration_ms=excluded.duration_ms, status=excluded.status, execution_order=excluded.execution_order, run_id=excluded.run_id`,
		d.Quote(table), HistoryColumns, placeholders(d, 9))
}
