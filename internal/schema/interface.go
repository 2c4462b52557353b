package schema

import (
	"context"
	"database/sql"
	"fmt"
)

// Dialect renders schema mutations and introspection queries for one engine.
type Dialect interface {
	Name() string
	AddColumn(table, column string, spec ColumnSpec) ([]string, error)
	DropColumn(table, column string, fks []ForeignKey) []string
	ConstraintName(table, column string) string
	TableExistsQuery(table string) (string, []any)
	ColumnsQuery(table string) (string, []any)
	ForeignKeysQuery(table string) (string, []any)
}

// Tx is the subset of *sql.Tx the SQL interface needs.
type Tx interface {
	Queryer
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLInterface applies schema mutations inside a single transaction. Every
// mutation is checked against the live schema first, so conflicts surface
// with the same error kind on every engine.
type SQLInterface struct {
	tx      Tx
	dialect Dialect
	// Executed collects every statement run, in order.
	Executed []string
}

func NewSQLInterface(tx Tx, d Dialect) *SQLInterface {
	return &SQLInterface{tx: tx, dialect: d}
}

func (q *SQLInterface) AddColumn(ctx context.Context, table, column string, spec ColumnSpec) error {
	const op = "addColumn"
	spec, err := Normalize(spec)
	if err != nil {
		return &Error{Kind: ErrSchemaConflict, Op: op, Table: table, Column: column, Err: err}
	}
	t, ok, err := Inspect(ctx, q.tx, q.dialect, table)
	if err != nil {
		return wrap(op, table, column, err)
	}
	if !ok {
		return conflict(op, table, column, "table %q does not exist", table)
	}
	if _, exists := t.Column(column); exists {
		return conflict(op, table, column, "column %q already exists", column)
	}
	if ref := spec.References; ref != nil {
		target, ok, err := Inspect(ctx, q.tx, q.dialect, ref.Model)
		if err != nil {
			return wrap(op, table, column, err)
		}
		if !ok {
			return &Error{Kind: ErrReferentialIntegrity, Op: op, Table: table, Column: column,
				Err: fmt.Errorf("referenced table %q does not exist", ref.Model)}
		}
		if _, exists := target.Column(ref.Key); !exists {
			return &Error{Kind: ErrReferentialIntegrity, Op: op, Table: table, Column: column,
				Err: fmt.Errorf("referenced column %s.%s does not exist", ref.Model, ref.Key)}
		}
	}

	stmts, err := q.dialect.AddColumn(table, column, spec)
	if err != nil {
		return &Error{Kind: ErrSchemaConflict, Op: op, Table: table, Column: column, Err: err}
	}
	return q.exec(ctx, op, table, column, stmts)
}

// RemoveColumn drops column, dropping any foreign key on it first.
func (q *SQLInterface) RemoveColumn(ctx context.Context, table, column string) error {
	const op = "removeColumn"
	t, ok, err := Inspect(ctx, q.tx, q.dialect, table)
	if err != nil {
		return wrap(op, table, column, err)
	}
	if !ok {
		return conflict(op, table, column, "table %q does not exist", table)
	}
	if _, exists := t.Column(column); !exists {
		return conflict(op, table, column, "column %q does not exist", column)
	}
	return q.exec(ctx, op, table, column, q.dialect.DropColumn(table, column, t.ForeignKeysOn(column)))
}

func (q *SQLInterface) exec(ctx context.Context, op, table, column string, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := q.tx.ExecContext(ctx, stmt); err != nil {
			return wrap(op, table, column, err)
		}
		q.Executed = append(q.Executed, stmt)
	}
	return nil
}
