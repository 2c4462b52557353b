package schema

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type columnRow struct {
	Name     string `db:"column_name"`
	Type     string `db:"data_type"`
	Nullable bool   `db:"nullable"`
	Primary  bool   `db:"primary_key"`
}

type foreignKeyRow struct {
	Name      string `db:"constraint_name"`
	Column    string `db:"column_name"`
	RefTable  string `db:"ref_table"`
	RefColumn string `db:"ref_column"`
	OnUpdate  string `db:"update_rule"`
	OnDelete  string `db:"delete_rule"`
}

// Inspect snapshots table. ok is false when the table does not exist.
func Inspect(ctx context.Context, q Queryer, d Dialect, table string) (Table, bool, error) {
	query, args := d.TableExistsQuery(table)
	var count int
	if err := queryScalar(ctx, q, &count, query, args...); err != nil {
		return Table{}, false, err
	}
	if count == 0 {
		return Table{}, false, nil
	}

	t := Table{Name: table}
	var cols []columnRow
	query, args = d.ColumnsQuery(table)
	if err := selectRows(ctx, q, &cols, query, args...); err != nil {
		return Table{}, false, err
	}
	for _, c := range cols {
		t.Columns = append(t.Columns, Column(c))
	}

	var fks []foreignKeyRow
	query, args = d.ForeignKeysQuery(table)
	if err := selectRows(ctx, q, &fks, query, args...); err != nil {
		return Table{}, false, err
	}
	for _, fk := range fks {
		onUpdate, _ := ParseAction(fk.OnUpdate)
		onDelete, _ := ParseAction(fk.OnDelete)
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Name: fk.Name, Column: fk.Column, RefTable: fk.RefTable, RefColumn: fk.RefColumn,
			OnUpdate: onUpdate, OnDelete: onDelete,
		})
	}
	return t, true, nil
}

func queryScalar(ctx context.Context, q Queryer, dest any, query string, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err := rows.Scan(dest); err != nil {
		return err
	}
	return rows.Close()
}

func selectRows(ctx context.Context, q Queryer, dest any, query string, args ...any) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	// StructScan closes rows.
	return sqlx.StructScan(rows, dest)
}
