package schema

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/value"
)

func mustSymbol(t *testing.T, s string) value.Value {
	t.Helper()
	v, err := value.Symbol(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestOf(t *testing.T) {
	t.Run("Primitives", func(t *testing.T) {
		if Of(value.Unit()).Kind != value.KindUnit {
			t.Errorf("Unit schema mismatch")
		}
		if Of(value.Bool(true)).Kind != value.KindBool {
			t.Errorf("Bool schema mismatch")
		}
		if Of(mustSymbol(t, "x")).Kind != value.KindSymbol {
			t.Errorf("Symbol schema mismatch")
		}
	})

	t.Run("Product", func(t *testing.T) {
		s := Of(value.Product(value.Int(1), value.Bool(true)))
		if s.Kind != value.KindProduct || len(s.Elems) != 2 {
			t.Fatalf("unexpected product schema: %+v", s)
		}
		if s.Elems[0].Kind != value.KindInt || s.Elems[1].Kind != value.KindBool {
			t.Errorf("element schemas mismatch")
		}
	})

	t.Run("SumTakenArmOnly", func(t *testing.T) {
		s := Of(value.Sum(2, value.Int(9)))
		if len(s.Arms) != 1 {
			t.Fatalf("expected 1 arm, got %d", len(s.Arms))
		}
		if s.Arms[0].Tag != 2 || s.Arms[0].Schema.Kind != value.KindInt {
			t.Errorf("taken arm not declared: %+v", s.Arms[0])
		}
		if s.Arm(2) == nil || s.Arm(0) != nil {
			t.Errorf("arm lookup mismatch")
		}
		if err := s.Validate(); err != nil {
			t.Errorf("derived schema must validate: %v", err)
		}
	})

	t.Run("SumMaxTag", func(t *testing.T) {
		// Tags are arbitrary uint32s; the arm set stays a single entry no
		// matter how large the tag gets.
		s := Of(value.Sum(math.MaxUint32, value.Unit()))
		if len(s.Arms) != 1 {
			t.Fatalf("expected 1 arm, got %d", len(s.Arms))
		}
		if s.Arms[0].Tag != math.MaxUint32 {
			t.Errorf("arm tag = %d, want %d", s.Arms[0].Tag, uint32(math.MaxUint32))
		}
		if err := s.Validate(); err != nil {
			t.Errorf("derived schema must validate: %v", err)
		}
	})

	t.Run("Record", func(t *testing.T) {
		rec, err := value.Record([]value.Field{
			{Name: "id", Value: value.Int(1)},
			{Name: "name", Value: mustSymbol(t, "n")},
		})
		if err != nil {
			t.Fatal(err)
		}
		s := Of(rec)
		if len(s.Fields) != 2 || s.Fields[0].Name != "id" || s.Fields[1].Name != "name" {
			t.Errorf("field schemas mismatch: %+v", s.Fields)
		}
	})
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		s    *Schema
		ok   bool
	}{
		{"Primitive", Int(), true},
		{"EmptyProduct", Product(), true},
		{"NilProductElem", Product(nil), false},
		{"SumNoArms", Sum(), false},
		{"SumNilArmSchema", &Schema{Kind: value.KindSum, Arms: []Arm{{Tag: 0, Schema: nil}}}, false},
		{"SumDuplicateTags", &Schema{Kind: value.KindSum, Arms: []Arm{{Tag: 1, Schema: Int()}, {Tag: 1, Schema: Bool()}}}, false},
		{"SumSparseTags", &Schema{Kind: value.KindSum, Arms: []Arm{{Tag: 7, Schema: Int()}, {Tag: 300, Schema: Unit()}}}, true},
		{"RecordDupName", Record(Field{"a", Int()}, Field{"a", Bool()}), false},
		{"RecordEmptyName", Record(Field{"", Int()}), false},
		{"RecordNilSchema", Record(Field{"a", nil}), false},
		{"UnknownKind", &Schema{Kind: value.Kind(200)}, false},
		{"NestedOK", Record(Field{"a", Product(Int(), Sum(Unit(), String()))}), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if tc.ok && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestFixedSize(t *testing.T) {
	cases := []struct {
		name  string
		s     *Schema
		size  int
		fixed bool
	}{
		{"Unit", Unit(), 0, true},
		{"Bool", Bool(), 1, true},
		{"Int", Int(), 4, true},
		{"Symbol", Symbol(), 0, false},
		{"String", String(), 0, false},
		{"SumAlwaysVariable", Sum(Bool(), Bool()), 0, false},
		{"FixedProduct", Product(Int(), Bool(), Unit()), 5, true},
		{"VariableProduct", Product(Int(), String()), 0, false},
		{"FixedRecord", Record(Field{"a", Int()}, Field{"b", Bool()}), 5, true},
		{"NestedFixed", Product(Product(Int(), Int()), Bool()), 9, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, ok := tc.s.FixedSize()
			if ok != tc.fixed {
				t.Fatalf("fixed = %t, want %t", ok, tc.fixed)
			}
			if ok && n != tc.size {
				t.Errorf("size = %d, want %d", n, tc.size)
			}
		})
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c := NewCodec()
	s := Record(
		Field{"type", String()},
		Field{"payload", Sum(Unit(), Product(Int(), Symbol()))},
		Field{"flags", Product(Bool(), Bool())},
	)

	encoded, err := c.Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	reencoded, err := c.Encode(decoded)
	if err != nil {
		t.Fatalf("re-Encode failed: %v", err)
	}
	if !bytes.Equal(encoded, reencoded) {
		t.Errorf("canonical descriptor encoding is not stable")
	}

	if decoded.Kind != value.KindRecord || len(decoded.Fields) != 3 {
		t.Fatalf("decoded shape mismatch: %+v", decoded)
	}
	if decoded.Fields[1].Schema.Kind != value.KindSum || len(decoded.Fields[1].Schema.Arms) != 2 {
		t.Errorf("sum arm schemas lost in round trip")
	}
}

func TestCodecSparseArmTags(t *testing.T) {
	c := NewCodec()
	s := &Schema{Kind: value.KindSum, Arms: []Arm{{Tag: math.MaxUint32, Schema: Unit()}}}

	encoded, err := c.Encode(s)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := c.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Arms) != 1 || decoded.Arms[0].Tag != math.MaxUint32 {
		t.Errorf("arm tag lost in round trip: %+v", decoded.Arms)
	}
	if decoded.Arm(math.MaxUint32) == nil {
		t.Errorf("arm lookup failed after round trip")
	}
}

func TestCodecRejectsInvalid(t *testing.T) {
	c := NewCodec()

	t.Run("EncodeInvalidSchema", func(t *testing.T) {
		_, err := c.Encode(Sum())
		if !errors.Is(err, core.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DecodeGarbage", func(t *testing.T) {
		_, err := c.Decode([]byte{0xff})
		if !errors.Is(err, core.ErrCorrupt) {
			t.Errorf("expected ErrCorrupt, got %v", err)
		}
	})
}
