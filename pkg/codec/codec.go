// Package codec implements the canonical SSZ byte layout for values:
// fixed-width little-endian primitives, and containers split into a fixed
// zone (fixed-size elements inline, 4-byte offsets for variable-size ones)
// followed by a variable zone holding the variable elements in order.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/value"
)

// OffsetSize is the width of a variable-element offset slot in a container's
// fixed zone.
const OffsetSize = 4

// Encode serializes a value into its canonical byte form. The shape is taken
// from the value instance itself; use EncodeWithSchema to enforce a declared
// shape.
func Encode(v value.Value) ([]byte, error) {
	return appendValue(nil, v)
}

// EncodeWithSchema validates the value against the declared schema before
// encoding. A shape mismatch (wrong kind, wrong arity, unknown sum arm,
// renamed field) fails with ErrSerialize.
func EncodeWithSchema(v value.Value, s *schema.Schema) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := conform(v, s); err != nil {
		return nil, err
	}
	return appendValue(nil, v)
}

func appendValue(dst []byte, v value.Value) ([]byte, error) {
	switch v.Kind() {
	case value.KindUnit:
		return dst, nil
	case value.KindBool:
		if v.Bool() {
			return append(dst, 1), nil
		}
		return append(dst, 0), nil
	case value.KindInt:
		return binary.LittleEndian.AppendUint32(dst, v.Int()), nil
	case value.KindSymbol, value.KindString:
		return append(dst, v.Text()...), nil
	case value.KindSum:
		dst = binary.LittleEndian.AppendUint32(dst, v.Tag())
		return appendValue(dst, v.Payload())
	case value.KindProduct:
		elems := make([]value.Value, v.Len())
		for i := range elems {
			elems[i] = v.Elem(i)
		}
		return appendContainer(dst, elems)
	case value.KindRecord:
		elems := make([]value.Value, v.Len())
		for i := range elems {
			elems[i] = v.FieldValue(i)
		}
		return appendContainer(dst, elems)
	default:
		return nil, fmt.Errorf("%w: unknown value kind %d", core.ErrSerialize, uint8(v.Kind()))
	}
}

func appendContainer(dst []byte, elems []value.Value) ([]byte, error) {
	fixedLen := 0
	for _, e := range elems {
		if n, ok := fixedSizeOf(e); ok {
			fixedLen += n
		} else {
			fixedLen += OffsetSize
		}
	}

	// Encode the variable zone up front so offsets are known when the fixed
	// zone is written.
	var varParts [][]byte
	var offsets []int
	next := fixedLen
	for _, e := range elems {
		if _, ok := fixedSizeOf(e); ok {
			continue
		}
		part, err := appendValue(nil, e)
		if err != nil {
			return nil, err
		}
		offsets = append(offsets, next)
		next += len(part)
		varParts = append(varParts, part)
	}
	if next > math.MaxUint32 {
		return nil, fmt.Errorf("%w: container of %d bytes exceeds 4-byte offset range", core.ErrSerialize, next)
	}

	vi := 0
	for _, e := range elems {
		if _, ok := fixedSizeOf(e); ok {
			var err error
			dst, err = appendValue(dst, e)
			if err != nil {
				return nil, err
			}
			continue
		}
		dst = binary.LittleEndian.AppendUint32(dst, uint32(offsets[vi]))
		vi++
	}
	for _, part := range varParts {
		dst = append(dst, part...)
	}
	return dst, nil
}

// fixedSizeOf classifies a value instance the same way Schema.FixedSize
// classifies its shape, so encoder and decoder agree on container layout.
func fixedSizeOf(v value.Value) (int, bool) {
	switch v.Kind() {
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
		for i := 0; i < v.Len(); i++ {
			n, ok := fixedSizeOf(v.Elem(i))
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	case value.KindRecord:
		total := 0
		for i := 0; i < v.Len(); i++ {
			n, ok := fixedSizeOf(v.FieldValue(i))
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	default:
		return 0, false
	}
}

// conform checks that a value matches a declared schema.
func conform(v value.Value, s *schema.Schema) error {
	if v.Kind() != s.Kind {
		return fmt.Errorf("%w: value kind %s does not match schema kind %s", core.ErrSerialize, v.Kind(), s.Kind)
	}
	switch s.Kind {
	case value.KindUnit, value.KindBool, value.KindInt, value.KindSymbol, value.KindString:
		return nil
	case value.KindProduct:
		if v.Len() != len(s.Elems) {
			return fmt.Errorf("%w: product arity %d does not match schema arity %d", core.ErrSerialize, v.Len(), len(s.Elems))
		}
		for i := 0; i < v.Len(); i++ {
			if err := conform(v.Elem(i), s.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	case value.KindSum:
		arm := s.Arm(v.Tag())
		if arm == nil {
			return fmt.Errorf("%w: sum tag %d selects no declared arm", core.ErrSerialize, v.Tag())
		}
		return conform(v.Payload(), arm)
	case value.KindRecord:
		if v.Len() != len(s.Fields) {
			return fmt.Errorf("%w: record has %d fields, schema declares %d", core.ErrSerialize, v.Len(), len(s.Fields))
		}
		for i := 0; i < v.Len(); i++ {
			if v.FieldName(i) != s.Fields[i].Name {
				return fmt.Errorf("%w: record field %d named %q, schema declares %q", core.ErrSerialize, i, v.FieldName(i), s.Fields[i].Name)
			}
			if err := conform(v.FieldValue(i), s.Fields[i].Schema); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown schema kind %d", core.ErrSerialize, uint8(s.Kind))
	}
}
