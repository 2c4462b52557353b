package dialect

import (
	"fmt"
	"strconv"

	"github.com/mirajehossain/deskmigrate/internal/schema"
)

type Postgres struct{}

func (Postgres) Name() string                               { return "postgres" }
func (Postgres) DriverName() string                         { return "pgx" }
func (Postgres) Placeholder(n int) string                   { return "$" + strconv.Itoa(n) }
func (Postgres) Quote(ident string) string                  { return quoteWith(`"`, ident) }
func (Postgres) ConstraintName(table, column string) string { return ConstraintName(table, column) }

func (Postgres) ColumnType(t schema.DataType) (string, error) {
	switch t {
	case schema.Integer:
		return "integer", nil
	case schema.BigInt:
		return "bigint", nil
	case schema.String:
		return "varchar(255)", nil
	case schema.Text:
		return "text", nil
	case schema.Boolean:
		return "boolean", nil
	case schema.Date:
		return "timestamptz", nil
	}
	return "", fmt.Errorf("postgres: unsupported type %q", t)
}

func (d Postgres) AddColumn(table, column string, spec schema.ColumnSpec) ([]string, error) {
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

func (d Postgres) DropColumn(table, column string, fks []schema.ForeignKey) []string {
	out := make([]string, 0, len(fks)+1)
	for _, fk := range fks {
		out = append(out, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s", d.Quote(table), d.Quote(fk.Name)))
	}
	return append(out, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(table), d.Quote(column)))
}

func (Postgres) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1`, []any{table}
}

func (Postgres) ColumnsQuery(table string) (string, []any) {
	return `
SELECT
	c.column_name AS column_name,
	c.data_type AS data_type,
	c.is_nullable = 'YES' AS nullable,
	EXISTS (
		SELECT 1
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage k
			ON k.constraint_name = tc.constraint_name AND k.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
			AND tc.table_schema = c.table_schema
			AND tc.table_name = c.table_name
			AND k.column_name = c.column_name
	) AS primary_key
FROM information_schema.columns c
WHERE c.table_schema = current_schema() AND c.table_name = $1
ORDER BY c.ordinal_position`, []any{table}
}

func (Postgres) ForeignKeysQuery(table string) (string, []any) {
	return `
SELECT
	c.conname AS constraint_name,
	a.attname AS column_name,
	rt.relname AS ref_table,
	ra.attname AS ref_column,
	CASE c.confupdtype WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' WHEN 'r' THEN 'RESTRICT' ELSE 'NO ACTION' END AS update_rule,
	CASE c.confdeltype WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' WHEN 'r' THEN 'RESTRICT' ELSE 'NO ACTION' END AS delete_rule
FROM pg_constraint c
JOIN pg_class t ON t.oid = c.conrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_class rt ON rt.oid = c.confrelid
JOIN pg_attribute a ON a.attrelid = c.conrelid AND a.attnum = c.conkey[1]
JOIN pg_attribute ra ON ra.attrelid = c.confrelid AND ra.attnum = c.confkey[1]
WHERE c.contype = 'f' AND n.nspname = current_schema() AND t.relname = $1
ORDER BY c.conname`, []any{table}
}

func (d Postgres) HistoryTableDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGSERIAL PRIMARY KEY,
  version VARCHAR(64) NOT NULL,
  name VARCHAR(255) NOT NULL,
  checksum CHAR(64) NOT NULL,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  applied_by VARCHAR(255) NOT NULL,
  duration_ms BIGINT NOT NULL,
  status VARCHAR(16) NOT NULL CHECK (status IN ('success', 'failed')),
  execution_order BIGINT NOT NULL,
  run_id VARCHAR(36) NOT NULL DEFAULT '',
  UNIQUE (version, name)
)`, d.Quote(table))
}

func (d Postgres) UpsertHistory(table string) string { return conflictUpsert(d, table) }
