package dialect

import (
	"fmt"

	"github.com/mirajehossain/deskmigrate/internal/schema"
)

// SQLite targets local development databases and the test suite.
type SQLite struct{}

func (SQLite) Name() string                               { return "sqlite" }
func (SQLite) DriverName() string                         { return "sqlite" }
func (SQLite) Placeholder(int) string                     { return "?" }
func (SQLite) Quote(ident string) string                  { return quoteWith(`"`, ident) }
func (SQLite) ConstraintName(table, column string) string { return ConstraintName(table, column) }

func (SQLite) ColumnType(t schema.DataType) (string, error) {
	switch t {
	case schema.Integer, schema.BigInt:
		return "INTEGER", nil
	case schema.String:
		return "VARCHAR(255)", nil
	case schema.Text:
		return "TEXT", nil
	case schema.Boolean:
		return "TINYINT(1)", nil
	case schema.Date:
		return "DATETIME", nil
	}
	return "", fmt.Errorf("sqlite: unsupported type %q", t)
}

// AddColumn declares the reference inline: SQLite has no ADD CONSTRAINT.
func (d SQLite) AddColumn(table, column string, spec schema.ColumnSpec) ([]string, error) {
	typ, err := d.ColumnType(spec.Type)
	if err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", d.Quote(table), d.Quote(column), typ)
	if !spec.Nullable() {
		stmt += " NOT NULL"
	}
	if spec.References != nil {
		stmt += fmt.Sprintf(" CONSTRAINT %s %s", d.Quote(ConstraintName(table, column)), referenceClause(d, spec))
	}
	return []string{stmt}, nil
}

// DropColumn needs no separate constraint drop: an inline reference is part
// of the column definition and goes with it.
func (d SQLite) DropColumn(table, column string, _ []schema.ForeignKey) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(table), d.Quote(column))}
}

func (SQLite) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}

func (SQLite) ColumnsQuery(table string) (string, []any) {
	return `
SELECT
	name AS column_name,
	type AS data_type,
	"notnull" = 0 AS nullable,
	pk > 0 AS primary_key
FROM pragma_table_info(?)
ORDER BY cid`, []any{table}
}

// ForeignKeysQuery reports constraints under the name ConstraintName would
// give them; SQLite does not expose constraint names.
func (SQLite) ForeignKeysQuery(table string) (string, []any) {
	return `
SELECT
	lower('fk_' || ? || '_' || "from") AS constraint_name,
	"from" AS column_name,
	"table" AS ref_table,
	COALESCE("to", '') AS ref_column,
	on_update AS update_rule,
	on_delete AS delete_rule
FROM pragma_foreign_key_list(?)
ORDER BY id, seq`, []any{table, table}
}

func (d SQLite) HistoryTableDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  version TEXT NOT NULL,
  name TEXT NOT NULL,
  checksum TEXT NOT NULL,
  applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  applied_by TEXT NOT NULL,
  duration_ms INTEGER NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('success', 'failed')),
  execution_order INTEGER NOT NULL,
  run_id TEXT NOT NULL DEFAULT '',
  UNIQUE (version, name)
)`, d.Quote(table))
}

func (d SQLite) UpsertHistory(table string) string { return conflictUpsert(d, table) }
