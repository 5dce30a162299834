package types

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind is the type tag of a Value.
type Kind byte

const (
	KindNull Kind = iota
	KindInt
	KindBool
	KindVarchar
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindVarchar:
		return "varchar"
	case KindDecimal:
		return "decimal"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

// Value is a single column value. It is a tagged union: only the field matching
// kind is meaningful.
type Value struct {
	kind Kind
	i    int64
	s    string
	d    decimal.Decimal
}

// NewNull returns the null value.
func NewNull() Value {
	return Value{}
}

func NewInt(v int64) Value {
	return Value{kind: KindInt, i: v}
}

func NewBool(v bool) Value {
	var i int64
	if v {
		i = 1
	}
	return Value{kind: KindBool, i: i}
}

func NewVarchar(v string) Value {
	return Value{kind: KindVarchar, s: v}
}

func NewDecimal(v decimal.Decimal) Value {
	return Value{kind: KindDecimal, d: v}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Int returns the integer payload. It panics if the value is not an int.
func (v Value) Int() int64 {
	v.mustBe(KindInt)
	return v.i
}

func (v Value) Bool() bool {
	v.mustBe(KindBool)
	return v.i != 0
}

func (v Value) Varchar() string {
	v.mustBe(KindVarchar)
	return v.s
}

func (v Value) Decimal() decimal.Decimal {
	v.mustBe(KindDecimal)
	return v.d
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value is %s, not %s", v.kind, k))
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindInt, KindBool:
		return v.i == other.i
	case KindVarchar:
		return v.s == other.s
	case KindDecimal:
		return v.d.Equal(other.d)
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "<NULL>"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindVarchar:
		return v.s
	case KindDecimal:
		return v.d.String()
	}
	return "<unknown>"
}
