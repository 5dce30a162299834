package types

import (
	"strings"

	"github.com/pingcap/errors"
)

// Column describes one column of a fixed schema.
type Column struct {
	Name string
	Kind Kind
}

// Schema is the ordered column list shared by every row of a table.
type Schema struct {
	Columns []Column
}

func NewSchema(cols ...Column) *Schema {
	return &Schema{Columns: cols}
}

func (s *Schema) ColumnCount() int {
	return len(s.Columns)
}

// Project builds the reduced schema made of the columns at the given indexes, in order.
func (s *Schema) Project(idxs []int) *Schema {
	cols := make([]Column, 0, len(idxs))
	for _, i := range idxs {
		cols = append(cols, s.Columns[i])
	}
	return &Schema{Columns: cols}
}

// Check verifies that row matches the schema: same length and every non-null value has the column kind.
func (s *Schema) Check(row Row) error {
	if len(row) != len(s.Columns) {
		return errors.Errorf("row has %d values, schema has %d columns", len(row), len(s.Columns))
	}
	for i, v := range row {
		if v.IsNull() {
			continue
		}
		if v.Kind() != s.Columns[i].Kind {
			return errors.Errorf("column %s expects %s, got %s", s.Columns[i].Name, s.Columns[i].Kind, v.Kind())
		}
	}
	return nil
}

// Row is an ordered sequence of values matching a schema.
type Row []Value

// Clone returns a copy of the row that shares no backing array with r.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	c := make(Row, len(r))
	copy(c, r)
	return c
}

func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if !r[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// String renders the row as "(v1, v2, ...)".
func (r Row) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range r {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.String())
	}
	b.WriteByte(')')
	return b.String()
}

// EmptyRow returns a row of nulls for the schema. Deleted rows carry it as payload.
func EmptyRow(s *Schema) Row {
	return make(Row, s.ColumnCount())
}
