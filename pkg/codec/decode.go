package codec

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/value"
)

// Strictness controls how Decode treats bytes beyond what the schema
// accounts for.
type Strictness int

const (
	// Strict rejects any trailing unconsumed bytes.
	Strict Strictness = iota
	// Lenient ignores trailing bytes beyond the schema's extent.
	Lenient
)

// DefaultMaxDepth bounds decoder recursion when no explicit limit is given.
const DefaultMaxDepth = 64

// Decode deserializes a buffer into a value of the given shape. The schema
// is mandatory: the layout is not self-describing at the top level.
func Decode(buf []byte, s *schema.Schema, mode Strictness) (value.Value, error) {
	return DecodeWithLimits(buf, s, mode, core.LimitsConfig{})
}

// DecodeWithLimits is Decode with explicit resource limits.
func DecodeWithLimits(buf []byte, s *schema.Schema, mode Strictness, limits core.LimitsConfig) (value.Value, error) {
	if err := s.Validate(); err != nil {
		return value.Value{}, err
	}
	if limits.MaxEncodedBytes > 0 && uint64(len(buf)) > limits.MaxEncodedBytes {
		return value.Value{}, fmt.Errorf("%w: input of %d bytes exceeds limit %d", core.ErrTooLarge, len(buf), limits.MaxEncodedBytes)
	}
	maxDepth := limits.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	if n, ok := s.FixedSize(); ok {
		if len(buf) < n {
			return value.Value{}, fmt.Errorf("%w: buffer of %d bytes shorter than fixed size %d", core.ErrDeserialize, len(buf), n)
		}
		if mode == Strict && len(buf) != n {
			return value.Value{}, fmt.Errorf("%w: %d trailing bytes beyond fixed size %d", core.ErrDeserialize, len(buf)-n, n)
		}
		return decodeValue(buf[:n], s, maxDepth)
	}

	// Variable-size top level: the value's extent is the whole buffer, so
	// strictness has nothing extra to check.
	return decodeValue(buf, s, maxDepth)
}

// decodeValue expects buf to be exactly the value's byte extent.
func decodeValue(buf []byte, s *schema.Schema, depth int) (value.Value, error) {
	if depth <= 0 {
		return value.Value{}, fmt.Errorf("%w: nesting exceeds maximum depth", core.ErrDeserialize)
	}

	switch s.Kind {
	case value.KindUnit:
		if len(buf) != 0 {
			return value.Value{}, fmt.Errorf("%w: unit must be empty, got %d bytes", core.ErrDeserialize, len(buf))
		}
		return value.Unit(), nil

	case value.KindBool:
		if len(buf) != 1 {
			return value.Value{}, fmt.Errorf("%w: bool must be 1 byte, got %d", core.ErrDeserialize, len(buf))
		}
		switch buf[0] {
		case 0:
			return value.Bool(false), nil
		case 1:
			return value.Bool(true), nil
		default:
			return value.Value{}, fmt.Errorf("%w: invalid bool byte 0x%02x", core.ErrDeserialize, buf[0])
		}

	case value.KindInt:
		if len(buf) != 4 {
			return value.Value{}, fmt.Errorf("%w: int must be 4 bytes, got %d", core.ErrDeserialize, len(buf))
		}
		return value.Int(binary.LittleEndian.Uint32(buf)), nil

	case value.KindSymbol, value.KindString:
		if !utf8.Valid(buf) {
			return value.Value{}, fmt.Errorf("%w: text payload is not valid UTF-8", core.ErrDeserialize)
		}
		if s.Kind == value.KindSymbol {
			v, err := value.Symbol(string(buf))
			if err != nil {
				return value.Value{}, fmt.Errorf("%w: %v", core.ErrDeserialize, err)
			}
			return v, nil
		}
		v, err := value.String(string(buf))
		if err != nil {
			return value.Value{}, fmt.Errorf("%w: %v", core.ErrDeserialize, err)
		}
		return v, nil

	case value.KindSum:
		if len(buf) < 4 {
			return value.Value{}, fmt.Errorf("%w: sum needs at least 4 tag bytes, got %d", core.ErrDeserialize, len(buf))
		}
		tag := binary.LittleEndian.Uint32(buf[:4])
		arm := s.Arm(tag)
		if arm == nil {
			return value.Value{}, fmt.Errorf("%w: sum tag %d matches no declared arm", core.ErrDeserialize, tag)
		}
		body := buf[4:]
		if n, ok := arm.FixedSize(); ok && len(body) != n {
			return value.Value{}, fmt.Errorf("%w: sum payload is %d bytes, arm fixed size is %d", core.ErrDeserialize, len(body), n)
		}
		payload, err := decodeValue(body, arm, depth-1)
		if err != nil {
			return value.Value{}, err
		}
		return value.Sum(tag, payload), nil

	case value.KindProduct:
		elems, err := decodeContainer(buf, s.Elems, depth)
		if err != nil {
			return value.Value{}, err
		}
		return value.Product(elems...), nil

	case value.KindRecord:
		schemas := make([]*schema.Schema, len(s.Fields))
		for i, f := range s.Fields {
			schemas[i] = f.Schema
		}
		elems, err := decodeContainer(buf, schemas, depth)
		if err != nil {
			return value.Value{}, err
		}
		fields := make([]value.Field, len(elems))
		for i := range elems {
			fields[i] = value.Field{Name: s.Fields[i].Name, Value: elems[i]}
		}
		v, err := value.Record(fields)
		if err != nil {
			// Schema was validated up front, so a bad field set here is a
			// codec defect, not an input problem.
			return value.Value{}, fmt.Errorf("%w: %v", core.ErrInternal, err)
		}
		return v, nil

	default:
		return value.Value{}, fmt.Errorf("%w: unknown schema kind %d", core.ErrDeserialize, uint8(s.Kind))
	}
}

// decodeContainer slices a container extent into per-element extents using
// the fixed zone's inline values and offset slots, then decodes each element.
func decodeContainer(buf []byte, elems []*schema.Schema, depth int) ([]value.Value, error) {
	fixedLen := 0
	for _, e := range elems {
		if n, ok := e.FixedSize(); ok {
			fixedLen += n
		} else {
			fixedLen += OffsetSize
		}
	}
	if len(buf) < fixedLen {
		return nil, fmt.Errorf("%w: container of %d bytes shorter than fixed zone %d", core.ErrDeserialize, len(buf), fixedLen)
	}

	extents := make([][]byte, len(elems))
	var offsets []int
	var varIndices []int
	pos := 0
	for i, e := range elems {
		if n, ok := e.FixedSize(); ok {
			extents[i] = buf[pos : pos+n]
			pos += n
			continue
		}
		off := int(binary.LittleEndian.Uint32(buf[pos : pos+OffsetSize]))
		offsets = append(offsets, off)
		varIndices = append(varIndices, i)
		pos += OffsetSize
	}

	if len(offsets) == 0 {
		if len(buf) != fixedLen {
			return nil, fmt.Errorf("%w: %d bytes beyond fixed-only container", core.ErrDeserialize, len(buf)-fixedLen)
		}
	} else {
		if offsets[0] != fixedLen {
			return nil, fmt.Errorf("%w: first offset %d does not start at fixed zone end %d", core.ErrDeserialize, offsets[0], fixedLen)
		}
		prev := fixedLen
		for _, off := range offsets {
			if off < prev {
				return nil, fmt.Errorf("%w: offset %d decreases below predecessor %d", core.ErrDeserialize, off, prev)
			}
			if off > len(buf) {
				return nil, fmt.Errorf("%w: offset %d points past buffer end %d", core.ErrDeserialize, off, len(buf))
			}
			prev = off
		}
		for j, i := range varIndices {
			end := len(buf)
			if j+1 < len(offsets) {
				end = offsets[j+1]
			}
			extents[i] = buf[offsets[j]:end]
		}
	}

	out := make([]value.Value, len(elems))
	for i, e := range elems {
		v, err := decodeValue(extents[i], e, depth-1)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
