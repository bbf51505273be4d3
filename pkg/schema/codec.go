package schema

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/value"
)

// descriptor is the on-disk form of a Schema.
type descriptor struct {
	Kind   uint8             `cbor:"kind"`
	Elems  []*descriptor     `cbor:"elems,omitempty"`
	Arms   []armDescriptor   `cbor:"arms,omitempty"`
	Fields []fieldDescriptor `cbor:"fields,omitempty"`
}

type armDescriptor struct {
	Tag    uint32      `cbor:"tag"`
	Schema *descriptor `cbor:"schema"`
}

type fieldDescriptor struct {
	Name   string      `cbor:"name"`
	Schema *descriptor `cbor:"schema"`
}

// Codec defines the interface for persisting schema descriptors.
type Codec interface {
	Encode(s *Schema) ([]byte, error)
	Decode(b []byte) (*Schema, error)
}

type codec struct {
	encMode cbor.EncMode
}

// NewCodec returns a descriptor codec using canonical CBOR encoding, so a
// given schema always serializes to the same bytes.
func NewCodec() Codec {
	em, _ := cbor.CanonicalEncOptions().EncMode()
	return &codec{encMode: em}
}

func (c *codec) Encode(s *Schema) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return c.encMode.Marshal(toDescriptor(s))
}

func (c *codec) Decode(b []byte) (*Schema, error) {
	var d descriptor
	if err := cbor.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal schema descriptor: %v", core.ErrCorrupt, err)
	}
	s := fromDescriptor(&d)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid schema descriptor: %v", core.ErrCorrupt, err)
	}
	return s, nil
}

func toDescriptor(s *Schema) *descriptor {
	if s == nil {
		return nil
	}
	d := &descriptor{Kind: uint8(s.Kind)}
	for _, e := range s.Elems {
		d.Elems = append(d.Elems, toDescriptor(e))
	}
	for _, a := range s.Arms {
		d.Arms = append(d.Arms, armDescriptor{Tag: a.Tag, Schema: toDescriptor(a.Schema)})
	}
	for _, f := range s.Fields {
		d.Fields = append(d.Fields, fieldDescriptor{Name: f.Name, Schema: toDescriptor(f.Schema)})
	}
	return d
}

func fromDescriptor(d *descriptor) *Schema {
	if d == nil {
		return nil
	}
	s := &Schema{Kind: value.Kind(d.Kind)}
	for _, e := range d.Elems {
		s.Elems = append(s.Elems, fromDescriptor(e))
	}
	for _, a := range d.Arms {
		s.Arms = append(s.Arms, Arm{Tag: a.Tag, Schema: fromDescriptor(a.Schema)})
	}
	for _, f := range d.Fields {
		s.Fields = append(s.Fields, Field{Name: f.Name, Schema: fromDescriptor(f.Schema)})
	}
	return s
}
