package value

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/latticelabs/canon/pkg/core"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindSymbol
	KindString
	KindProduct
	KindSum
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "Unit"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindSymbol:
		return "Symbol"
	case KindString:
		return "String"
	case KindProduct:
		return "Product"
	case KindSum:
		return "Sum"
	case KindRecord:
		return "Record"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one node of the closed value union. A Value is immutable after
// construction; the zero Value is Unit.
type Value struct {
	kind  Kind
	b     bool
	u     uint32 // Int payload, or Sum tag
	s     string // Symbol/String payload
	elems []Value
	names []string // Record field names, parallel to elems
}

// Field is a named Record member.
type Field struct {
	Name  string
	Value Value
}

// Unit returns the unit value.
func Unit() Value {
	return Value{kind: KindUnit}
}

// Bool returns a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Int returns an unsigned 32-bit integer value.
func Int(n uint32) Value {
	return Value{kind: KindInt, u: n}
}

// Symbol returns a symbol value. The payload must be valid UTF-8.
func Symbol(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return Value{}, fmt.Errorf("%w: symbol payload is not valid UTF-8", core.ErrInvalidInput)
	}
	return Value{kind: KindSymbol, s: s}, nil
}

// String returns a string value. The payload must be valid UTF-8.
func String(s string) (Value, error) {
	if !utf8.ValidString(s) {
		return Value{}, fmt.Errorf("%w: string payload is not valid UTF-8", core.ErrInvalidInput)
	}
	return Value{kind: KindString, s: s}, nil
}

// Product returns an ordered tuple over the given elements. The arity is
// fixed by construction.
func Product(elems ...Value) Value {
	own := make([]Value, len(elems))
	copy(own, elems)
	return Value{kind: KindProduct, elems: own}
}

// Sum returns a tagged-union value selecting arm tag with the given payload.
func Sum(tag uint32, payload Value) Value {
	return Value{kind: KindSum, u: tag, elems: []Value{payload}}
}

// Record returns a structured value with ordered named fields. Field names
// must be non-empty and unique within the record.
func Record(fields []Field) (Value, error) {
	names := make([]string, len(fields))
	elems := make([]Value, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return Value{}, fmt.Errorf("%w: record field %d has empty name", core.ErrInvalidInput, i)
		}
		if _, dup := seen[f.Name]; dup {
			return Value{}, fmt.Errorf("%w: duplicate record field name %q", core.ErrInvalidInput, f.Name)
		}
		seen[f.Name] = struct{}{}
		names[i] = f.Name
		elems[i] = f.Value
	}
	return Value{kind: KindRecord, elems: elems, names: names}, nil
}

// Kind reports the variant of v.
func (v Value) Kind() Kind {
	return v.kind
}

// Bool returns the boolean payload. Panics unless v is a Bool.
func (v Value) Bool() bool {
	v.mustBe(KindBool)
	return v.b
}

// Int returns the integer payload. Panics unless v is an Int.
func (v Value) Int() uint32 {
	v.mustBe(KindInt)
	return v.u
}

// Text returns the UTF-8 payload. Panics unless v is a Symbol or String.
func (v Value) Text() string {
	if v.kind != KindSymbol && v.kind != KindString {
		panic(fmt.Sprintf("value: Text called on %s", v.kind))
	}
	return v.s
}

// Len returns the element count of a Product or the field count of a Record.
func (v Value) Len() int {
	if v.kind != KindProduct && v.kind != KindRecord {
		panic(fmt.Sprintf("value: Len called on %s", v.kind))
	}
	return len(v.elems)
}

// Elem returns the i-th element. Panics unless v is a Product.
func (v Value) Elem(i int) Value {
	v.mustBe(KindProduct)
	return v.elems[i]
}

// Tag returns the selected arm index. Panics unless v is a Sum.
func (v Value) Tag() uint32 {
	v.mustBe(KindSum)
	return v.u
}

// Payload returns the arm payload. Panics unless v is a Sum.
func (v Value) Payload() Value {
	v.mustBe(KindSum)
	return v.elems[0]
}

// FieldName returns the i-th field name. Panics unless v is a Record.
func (v Value) FieldName(i int) string {
	v.mustBe(KindRecord)
	return v.names[i]
}

// FieldValue returns the i-th field value. Panics unless v is a Record.
func (v Value) FieldValue(i int) Value {
	v.mustBe(KindRecord)
	return v.elems[i]
}

// Fields returns a copy of a Record's fields in declaration order.
func (v Value) Fields() []Field {
	v.mustBe(KindRecord)
	out := make([]Field, len(v.elems))
	for i := range v.elems {
		out[i] = Field{Name: v.names[i], Value: v.elems[i]}
	}
	return out
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: %s accessor called on %s", k, v.kind))
	}
}

// Equal reports deep structural equality: same variant and same payload,
// recursively.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnit:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.u == o.u
	case KindSymbol, KindString:
		return v.s == o.s
	case KindSum:
		return v.u == o.u && v.elems[0].Equal(o.elems[0])
	case KindProduct, KindRecord:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.names {
			if v.names[i] != o.names[i] {
				return false
			}
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders a debug form of the value. The output is for diagnostics
// only and is not a serialization format.
func (v Value) String() string {
	var sb strings.Builder
	v.debug(&sb)
	return sb.String()
}

func (v Value) debug(sb *strings.Builder) {
	switch v.kind {
	case KindUnit:
		sb.WriteString("Unit")
	case KindBool:
		fmt.Fprintf(sb, "Bool(%t)", v.b)
	case KindInt:
		fmt.Fprintf(sb, "Int(%d)", v.u)
	case KindSymbol:
		fmt.Fprintf(sb, "Symbol(%q)", v.s)
	case KindString:
		fmt.Fprintf(sb, "String(%q)", v.s)
	case KindSum:
		fmt.Fprintf(sb, "Sum(%d, ", v.u)
		v.elems[0].debug(sb)
		sb.WriteString(")")
	case KindProduct:
		sb.WriteString("Product(")
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.debug(sb)
		}
		sb.WriteString(")")
	case KindRecord:
		sb.WriteString("Record{")
		for i, e := range v.elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%s: ", v.names[i])
			e.debug(sb)
		}
		sb.WriteString("}")
	}
}
