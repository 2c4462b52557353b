package schema

import (
	"context"
	"fmt"
	"strings"
)

// Op is one recorded schema mutation.
type Op struct {
	Kind   string // addColumn | removeColumn
	Table  string
	Column string
	Spec   *ColumnSpec
}

func (o Op) String() string {
	if o.Spec == nil {
		return fmt.Sprintf("%s %s.%s", o.Kind, o.Table, o.Column)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s.%s %s", o.Kind, o.Table, o.Column, o.Spec.Type)
	if o.Spec.Nullable() {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if ref := o.Spec.References; ref != nil {
		fmt.Fprintf(&b, " REFERENCES %s(%s)", ref.Model, ref.Key)
	}
	if o.Spec.OnUpdate != "" {
		fmt.Fprintf(&b, " ON UPDATE %s", o.Spec.OnUpdate)
	}
	if o.Spec.OnDelete != "" {
		fmt.Fprintf(&b, " ON DELETE %s", o.Spec.OnDelete)
	}
	return b.String()
}

// Recorder is a QueryInterface that touches no database. It keeps the
// mutations it was asked for and, when it has a dialect, the DDL they render to.
type Recorder struct {
	dialect    Dialect
	known      []Op
	Ops        []Op
	Statements []string
}

func NewRecorder(d Dialect) *Recorder { return &Recorder{dialect: d} }

func (r *Recorder) AddColumn(_ context.Context, table, column string, spec ColumnSpec) error {
	spec, err := Normalize(spec)
	if err != nil {
		return &Error{Kind: ErrSchemaConflict, Op: "addColumn", Table: table, Column: column, Err: err}
	}
	s := spec
	r.Ops = append(r.Ops, Op{Kind: "addColumn", Table: table, Column: column, Spec: &s})
	if r.dialect == nil {
		return nil
	}
	stmts, err := r.dialect.AddColumn(table, column, spec)
	if err != nil {
		return err
	}
	r.Statements = append(r.Statements, stmts...)
	return nil
}

// Predict seeds the recorder with ops recorded elsewhere, typically the
// matching up, so RemoveColumn can render the foreign key drop the real
// run will find.
func (r *Recorder) Predict(ops []Op) *Recorder {
	r.known = append(r.known, ops...)
	return r
}

// RemoveColumn records the drop. A reference is only predicted from known
// or earlier recorded addColumn ops; the live schema decides at apply time.
func (r *Recorder) RemoveColumn(_ context.Context, table, column string) error {
	r.Ops = append(r.Ops, Op{Kind: "removeColumn", Table: table, Column: column})
	if r.dialect != nil {
		r.Statements = append(r.Statements, r.dialect.DropColumn(table, column, r.predictForeignKeys(table, column))...)
	}
	return nil
}

func (r *Recorder) predictForeignKeys(table, column string) []ForeignKey {
	ops := append(append([]Op(nil), r.known...), r.Ops...)
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		if op.Table != table || op.Column != column {
			continue
		}
		if op.Kind != "addColumn" || op.Spec.References == nil {
			return nil
		}
		return []ForeignKey{{
			Name:      r.dialect.ConstraintName(table, column),
			Column:    column,
			RefTable:  op.Spec.References.Model,
			RefColumn: op.Spec.References.Key,
			OnUpdate:  op.Spec.OnUpdate,
			OnDelete:  op.Spec.OnDelete,
		}}
	}
	return nil
}

// Lines renders the recorded ops, one per line.
func (r *Recorder) Lines() []string {
	out := make([]string, 0, len(r.Ops))
	for _, op := range r.Ops {
		out = append(out, op.String())
	}
	return out
}
