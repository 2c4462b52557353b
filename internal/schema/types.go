package schema

import (
	"context"
	"fmt"
	"strings"
)

// DataType is the semantic column type; each dialect decides how to render it.
type DataType string

const (
	Integer DataType = "INTEGER"
	BigInt  DataType = "BIGINT"
	String  DataType = "STRING"
	Text    DataType = "TEXT"
	Boolean DataType = "BOOLEAN"
	Date    DataType = "DATE"
)

// ReferentialAction is what the engine does to referencing rows when the
// referenced row is updated or deleted.
type ReferentialAction string

const (
	Cascade    ReferentialAction = "CASCADE"
	SetNull    ReferentialAction = "SET NULL"
	Restrict   ReferentialAction = "RESTRICT"
	NoAction   ReferentialAction = "NO ACTION"
	SetDefault ReferentialAction = "SET DEFAULT"
)

// ParseAction normalizes case and inner whitespace ("set  null" -> SET NULL).
// An empty string parses to the empty action, meaning "engine default".
func ParseAction(s string) (ReferentialAction, error) {
	norm := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	switch a := ReferentialAction(norm); a {
	case "", Cascade, SetNull, Restrict, NoAction, SetDefault:
		return a, nil
	}
	return "", fmt.Errorf("unknown referential action %q", s)
}

// Reference points a column at Model.Key.
type Reference struct {
	Model string
	Key   string
}

// ColumnSpec describes a column to add. Columns are nullable unless
// AllowNull is set to false.
type ColumnSpec struct {
	Type       DataType
	AllowNull  *bool
	References *Reference
	OnUpdate   ReferentialAction
	OnDelete   ReferentialAction
}

func (s ColumnSpec) Nullable() bool { return s.AllowNull == nil || *s.AllowNull }

// Normalize validates spec and returns it with its referential actions in
// canonical form, so "set  null" renders and checksums as SET NULL.
func Normalize(spec ColumnSpec) (ColumnSpec, error) {
	if spec.Type == "" {
		return spec, fmt.Errorf("column type is required")
	}
	var err error
	if spec.OnUpdate, err = ParseAction(string(spec.OnUpdate)); err != nil {
		return spec, err
	}
	if spec.OnDelete, err = ParseAction(string(spec.OnDelete)); err != nil {
		return spec, err
	}
	if spec.References == nil {
		if spec.OnUpdate != "" || spec.OnDelete != "" {
			return spec, fmt.Errorf("onUpdate/onDelete require a reference")
		}
		return spec, nil
	}
	if spec.References.Model == "" || spec.References.Key == "" {
		return spec, fmt.Errorf("reference needs both model and key")
	}
	if !spec.Nullable() && (spec.OnDelete == SetNull || spec.OnUpdate == SetNull) {
		return spec, fmt.Errorf("SET NULL action on a NOT NULL column")
	}
	return spec, nil
}

// Validate rejects specs no engine would accept.
func Validate(spec ColumnSpec) error {
	_, err := Normalize(spec)
	return err
}

// QueryInterface is the schema-mutation surface handed to descriptors.
type QueryInterface interface {
	AddColumn(ctx context.Context, table, column string, spec ColumnSpec) error
	RemoveColumn(ctx context.Context, table, column string) error
}

// ForeignKey is an introspected foreign-key constraint on a single column.
type ForeignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
	OnUpdate  ReferentialAction
	OnDelete  ReferentialAction
}

type Column struct {
	Name     string
	Type     string
	Nullable bool
	Primary  bool
}

// Table is a point-in-time snapshot of a table's shape.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ForeignKeysOn returns the constraints whose local column is column.
func (t Table) ForeignKeysOn(column string) []ForeignKey {
	var out []ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			out = append(out, fk)
		}
	}
	return out
}

// ColumnNames lists column names in ordinal order.
func (t Table) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}
