package dialect

import (
	"fmt"

	"github.com/mirajehossain/deskmigrate/internal/schema"
)

type MySQL struct{}

func (MySQL) Name() string                               { return "mysql" }
func (MySQL) DriverName() string                         { return "mysql" }
func (MySQL) Placeholder(int) string                     { return "?" }
func (MySQL) Quote(ident string) string                  { return quoteWith("`", ident) }
func (MySQL) ConstraintName(table, column string) string { return ConstraintName(table, column) }

func (MySQL) ColumnType(t schema.DataType) (string, error) {
	switch t {
	case schema.Integer:
		return "INT", nil
	case schema.BigInt:
		return "BIGINT", nil
	case schema.String:
		return "VARCHAR(255)", nil
	case schema.Text:
		return "TEXT", nil
	case schema.Boolean:
		return "TINYINT(1)", nil
	case schema.Date:
		return "DATETIME", nil
	}
	return "", fmt.Errorf("mysql: unsupported type %q", t)
}

// AddColumn adds the column and its constraint in a single ALTER.
func (d MySQL) AddColumn(table, column string, spec schema.ColumnSpec) ([]string, error) {
	typ, err := d.ColumnType(spec.Type)
	if err != nil {
		return nil, err
	}
	null := "NULL"
	if !spec.Nullable() {
		null = "NOT NULL"
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s %s", d.Quote(table), d.Quote(column), typ, null)
	if spec.References != nil {
		stmt += fmt.Sprintf(", ADD CONSTRAINT %s FOREIGN KEY (%s) %s",
			d.Quote(ConstraintName(table, column)), d.Quote(column), referenceClause(d, spec))
	}
	return []string{stmt}, nil
}

func (d MySQL) DropColumn(table, column string, fks []schema.ForeignKey) []string {
	out := make([]string, 0, len(fks)+1)
	for _, fk := range fks {
		out = append(out, fmt.Sprintf("ALTER TABLE %s DROP FOREIGN KEY %s", d.Quote(table), d.Quote(fk.Name)))
	}
	return append(out, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", d.Quote(table), d.Quote(column)))
}

func (MySQL) TableExistsQuery(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, []any{table}
}

func (MySQL) ColumnsQuery(table string) (string, []any) {
	return `
SELECT
	COLUMN_NAME AS column_name,
	COLUMN_TYPE AS data_type,
	IS_NULLABLE = 'YES' AS nullable,
	COLUMN_KEY = 'PRI' AS primary_key
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`, []any{table}
}

func (MySQL) ForeignKeysQuery(table string) (string, []any) {
	return `
SELECT
	k.CONSTRAINT_NAME AS constraint_name,
	k.COLUMN_NAME AS column_name,
	k.REFERENCED_TABLE_NAME AS ref_table,
	k.REFERENCED_COLUMN_NAME AS ref_column,
	r.UPDATE_RULE AS update_rule,
	r.DELETE_RULE AS delete_rule
FROM information_schema.KEY_COLUMN_USAGE k
JOIN information_schema.REFERENTIAL_CONSTRAINTS r
	ON r.CONSTRAINT_SCHEMA = k.CONSTRAINT_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
WHERE k.TABLE_SCHEMA = DATABASE() AND k.TABLE_NAME = ? AND k.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY k.CONSTRAINT_NAME`, []any{table}
}

func (d MySQL) HistoryTableDDL(table string) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id BIGINT PRIMARY KEY AUTO_INCREMENT,
  version VARCHAR(64) NOT NULL,
  name VARCHAR(255) NOT NULL,
  checksum CHAR(64) NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
  applied_by VARCHAR(255) NOT NULL,
  duration_ms BIGINT NOT NULL,
  status ENUM('success','failed') NOT NULL,
  execution_order BIGINT NOT NULL,
  run_id CHAR(36) NOT NULL DEFAULT '',
  UNIQUE KEY uniq_version_name (version, name)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, d.Quote(table))
}

func (d MySQL) UpsertHistory(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (%s)
VALUES (%s)
ON DUPLICATE KEY UPDATE checksum=VALUES(checksum), applied_at=VALUES(applied_at), applied_by=VALUES(applied_by), duration_ms=VALUES(duration_ms), status=VALUES(status), execution_order=VALUES(execution_order), run_id=VALUES(run_id)`,
		d.Quote(table), HistoryColumns, placeholders(d, 9))
}
