// Package schema describes the shape of a value independently of any
// particular instance. Decoding is schema-directed: the byte layout carries
// no top-level type tag, so the decoder must be told what it is looking at.
package schema

import (
	"fmt"

	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/value"
)

// Schema is the shape descriptor for one value. Exactly one of Elems, Arms,
// or Fields is populated, matching Kind.
type Schema struct {
	Kind   value.Kind
	Elems  []*Schema // Product element schemas, in order
	Arms   []Arm     // Sum arm schemas; sparse, a tag may be any uint32
	Fields []Field   // Record field schemas, in declaration order
}

// Arm names one selectable Sum alternative by its tag.
type Arm struct {
	Tag    uint32
	Schema *Schema
}

// Field names one Record member and its shape.
type Field struct {
	Name   string
	Schema *Schema
}

func Unit() *Schema   { return &Schema{Kind: value.KindUnit} }
func Bool() *Schema   { return &Schema{Kind: value.KindBool} }
func Int() *Schema    { return &Schema{Kind: value.KindInt} }
func Symbol() *Schema { return &Schema{Kind: value.KindSymbol} }
func String() *Schema { return &Schema{Kind: value.KindString} }

func Product(elems ...*Schema) *Schema {
	return &Schema{Kind: value.KindProduct, Elems: elems}
}

// Sum declares arms at consecutive tags starting from 0. Use the Arms field
// directly for non-contiguous tag sets.
func Sum(arms ...*Schema) *Schema {
	s := &Schema{Kind: value.KindSum, Arms: make([]Arm, 0, len(arms))}
	for i, a := range arms {
		s.Arms = append(s.Arms, Arm{Tag: uint32(i), Schema: a})
	}
	return s
}

// Arm returns the schema declared for tag, or nil when no arm carries it.
func (s *Schema) Arm(tag uint32) *Schema {
	for _, a := range s.Arms {
		if a.Tag == tag {
			return a.Schema
		}
	}
	return nil
}

func Record(fields ...Field) *Schema {
	return &Schema{Kind: value.KindRecord, Fields: fields}
}

// Of derives the schema of an existing value. For a Sum value only the taken
// arm is observable: the result declares just that one arm, which is
// sufficient to decode that value's own encoding.
func Of(v value.Value) *Schema {
	switch v.Kind() {
	case value.KindUnit, value.KindBool, value.KindInt, value.KindSymbol, value.KindString:
		return &Schema{Kind: v.Kind()}
	case value.KindProduct:
		elems := make([]*Schema, v.Len())
		for i := range elems {
			elems[i] = Of(v.Elem(i))
		}
		return &Schema{Kind: value.KindProduct, Elems: elems}
	case value.KindSum:
		return &Schema{Kind: value.KindSum, Arms: []Arm{{Tag: v.Tag(), Schema: Of(v.Payload())}}}
	case value.KindRecord:
		fields := make([]Field, v.Len())
		for i := range fields {
			fields[i] = Field{Name: v.FieldName(i), Schema: Of(v.FieldValue(i))}
		}
		return &Schema{Kind: value.KindRecord, Fields: fields}
	default:
		return &Schema{Kind: value.KindUnit}
	}
}

// Validate checks structural well-formedness: record field names non-empty
// and unique, Sum arm tags unique with at least one arm, no nil children.
func (s *Schema) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil schema", core.ErrInvalidInput)
	}
	switch s.Kind {
	case value.KindUnit, value.KindBool, value.KindInt, value.KindSymbol, value.KindString:
		return nil
	case value.KindProduct:
		for i, e := range s.Elems {
			if e == nil {
				return fmt.Errorf("%w: product element %d is nil", core.ErrInvalidInput, i)
			}
			if err := e.Validate(); err != nil {
				return err
			}
		}
		return nil
	case value.KindSum:
		if len(s.Arms) == 0 {
			return fmt.Errorf("%w: sum schema has no arms", core.ErrInvalidInput)
		}
		seen := make(map[uint32]struct{}, len(s.Arms))
		for _, a := range s.Arms {
			if _, dup := seen[a.Tag]; dup {
				return fmt.Errorf("%w: duplicate sum arm tag %d", core.ErrInvalidInput, a.Tag)
			}
			seen[a.Tag] = struct{}{}
			if a.Schema == nil {
				return fmt.Errorf("%w: sum arm %d has nil schema", core.ErrInvalidInput, a.Tag)
			}
			if err := a.Schema.Validate(); err != nil {
				return err
			}
		}
		return nil
	case value.KindRecord:
		seen := make(map[string]struct{}, len(s.Fields))
		for i, f := range s.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: record field %d has empty name", core.ErrInvalidInput, i)
			}
			if _, dup := seen[f.Name]; dup {
				return fmt.Errorf("%w: duplicate record field name %q", core.ErrInvalidInput, f.Name)
			}
			seen[f.Name] = struct{}{}
			if f.Schema == nil {
				return fmt.Errorf("%w: record field %q has nil schema", core.ErrInvalidInput, f.Name)
			}
			if err := f.Schema.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", core.ErrInvalidInput, uint8(s.Kind))
	}
}

// FixedSize returns the statically known encoded size of values of this
// shape, or ok=false when the size depends on the instance. Sum shapes are
// always variable: the size class is a property of the whole arm set, and
// arms generally differ.
func (s *Schema) FixedSize() (n int, ok bool) {
	switch s.Kind {
	case value.KindUnit:
		return 0, true
	case value.KindBool:
		return 1, true
	case value.KindInt:
		return 4, true
	case value.KindSymbol, value.KindString, value.KindSum:
		return 0, false
	case value.KindProduct:
		total := 0
		for _, e := range s.Elems {
			en, eok := e.FixedSize()
			if !eok {
				return 0, false
			}
			total += en
		}
		return total, true
	case value.KindRecord:
		total := 0
		for _, f := range s.Fields {
			fn, fok := f.Schema.FixedSize()
			if !fok {
				return 0, false
			}
			total += fn
		}
		return total, true
	default:
		return 0, false
	}
}
