package merkle_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/latticelabs/canon/internal/testkit"
	"github.com/latticelabs/canon/pkg/codec"
	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/merkle"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/value"
)

func TestHashTreeRoot(t *testing.T) {
	t.Run("SingleChunkIsItsOwnRoot", func(t *testing.T) {
		root, err := merkle.HashTreeRoot([]byte{0x01})
		if err != nil {
			t.Fatal(err)
		}
		var want core.Hash
		want[0] = 0x01
		if root != want {
			t.Errorf("single-chunk root = %s, want zero-padded chunk", root)
		}
	})

	t.Run("EmptyInputIsZeroChunk", func(t *testing.T) {
		root, err := merkle.HashTreeRoot(nil)
		if err != nil {
			t.Fatal(err)
		}
		if root != (core.Hash{}) {
			t.Errorf("empty input root = %s, want zero chunk", root)
		}
	})

	t.Run("TwoChunksHash", func(t *testing.T) {
		data := make([]byte, 33) // spills into a second chunk
		data[0] = 0xAB
		root, err := merkle.HashTreeRoot(data)
		if err != nil {
			t.Fatal(err)
		}
		var chunk core.Hash
		chunk[0] = 0xAB
		if root == chunk {
			t.Errorf("multi-chunk root must not equal the first chunk")
		}
	})

	t.Run("PadsChunkCountToPowerOfTwo", func(t *testing.T) {
		// Three chunks of data must hash like four, with a zero fourth chunk.
		three := make([]byte, 3*merkle.ChunkSize)
		for i := range three {
			three[i] = byte(i)
		}
		four := make([]byte, 4*merkle.ChunkSize)
		copy(four, three)

		a, err := merkle.HashTreeRoot(three)
		if err != nil {
			t.Fatal(err)
		}
		b, err := merkle.HashTreeRoot(four)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("explicit zero fourth chunk must hash identically to padding")
		}
	})

	t.Run("Deterministic", func(t *testing.T) {
		rng := testkit.RNG(3)
		data := testkit.RandomBytes(rng, 1000)
		a, err := merkle.HashTreeRoot(data)
		if err != nil {
			t.Fatal(err)
		}
		b, err := merkle.HashTreeRoot(data)
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Errorf("hash is not deterministic")
		}
	})
}

func TestLengthMixing(t *testing.T) {
	t.Run("PaddingCollisionBroken", func(t *testing.T) {
		// "a" and "a\x00" produce the identical padded chunk; only the
		// length mix separates them.
		a, err := merkle.HashTreeRoot([]byte("a"))
		if err != nil {
			t.Fatal(err)
		}
		b, err := merkle.HashTreeRoot([]byte("a\x00"))
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Fatalf("expected identical raw roots for zero-padded prefix inputs")
		}

		am, err := merkle.RootWithLength([]byte("a"))
		if err != nil {
			t.Fatal(err)
		}
		bm, err := merkle.RootWithLength([]byte("a\x00"))
		if err != nil {
			t.Fatal(err)
		}
		if am == bm {
			t.Errorf("length mixing failed to separate different-length inputs")
		}
	})

	t.Run("DistinctStrings", func(t *testing.T) {
		a, err := merkle.RootWithLength([]byte("a"))
		if err != nil {
			t.Fatal(err)
		}
		aa, err := merkle.RootWithLength([]byte("aa"))
		if err != nil {
			t.Fatal(err)
		}
		if a == aa {
			t.Errorf(`"a" and "aa" must not collide`)
		}
	})

	t.Run("EmptyInputHashes", func(t *testing.T) {
		root, err := merkle.RootWithLength(nil)
		if err != nil {
			t.Fatal(err)
		}
		if root == (core.Hash{}) {
			t.Errorf("mixed root of empty input should not be all zeros")
		}
	})
}

func TestRoot(t *testing.T) {
	t.Run("FixedValueSkipsLengthMix", func(t *testing.T) {
		v := value.Bool(true)
		root, err := merkle.Root(v)
		if err != nil {
			t.Fatal(err)
		}
		encoded, err := codec.Encode(v)
		if err != nil {
			t.Fatal(err)
		}
		plain, err := merkle.HashTreeRoot(encoded)
		if err != nil {
			t.Fatal(err)
		}
		if root != plain {
			t.Errorf("fixed-size value must not mix length")
		}
	})

	t.Run("VariableValueMixesLength", func(t *testing.T) {
		v, err := value.String("abc")
		if err != nil {
			t.Fatal(err)
		}
		root, err := merkle.Root(v)
		if err != nil {
			t.Fatal(err)
		}
		mixed, err := merkle.RootWithLength([]byte("abc"))
		if err != nil {
			t.Fatal(err)
		}
		if root != mixed {
			t.Errorf("variable-size value must mix length")
		}
		plain, err := merkle.HashTreeRoot([]byte("abc"))
		if err != nil {
			t.Fatal(err)
		}
		if root == plain {
			t.Errorf("mixed root unexpectedly equals unmixed root")
		}
	})

	t.Run("MatchesRootOfEncoded", func(t *testing.T) {
		rng := testkit.RNG(11)
		for i := 0; i < 100; i++ {
			v := testkit.RandomValue(rng, 4)
			direct, err := merkle.Root(v)
			if err != nil {
				t.Fatal(err)
			}
			encoded, err := codec.Encode(v)
			if err != nil {
				t.Fatal(err)
			}
			indirect, err := merkle.RootOfEncoded(encoded, schema.Of(v))
			if err != nil {
				t.Fatal(err)
			}
			if direct != indirect {
				t.Fatalf("Root and RootOfEncoded disagree for %s", v)
			}
		}
	})

	t.Run("MaxSumTag", func(t *testing.T) {
		// The tag's magnitude must not affect the cost of hashing; only the
		// 4 encoded tag bytes do.
		root, err := merkle.Root(value.Sum(math.MaxUint32, value.Unit()))
		if err != nil {
			t.Fatalf("Root failed: %v", err)
		}
		other, err := merkle.Root(value.Sum(math.MaxUint32-1, value.Unit()))
		if err != nil {
			t.Fatal(err)
		}
		if root == other {
			t.Errorf("different tags produced the same root")
		}
	})

	t.Run("PureFunctionOfEncoding", func(t *testing.T) {
		a, err := value.String("same")
		if err != nil {
			t.Fatal(err)
		}
		b, err := value.String("same")
		if err != nil {
			t.Fatal(err)
		}
		ra, err := merkle.Root(a)
		if err != nil {
			t.Fatal(err)
		}
		rb, err := merkle.Root(b)
		if err != nil {
			t.Fatal(err)
		}
		if ra != rb {
			t.Errorf("equal values produced different roots")
		}
	})
}

func BenchmarkHashTreeRoot(b *testing.B) {
	sizes := []int{32, 1024, 64 * 1024}
	rng := testkit.RNG(5)
	for _, sz := range sizes {
		data := testkit.RandomBytes(rng, sz)
		b.Run(fmt.Sprintf("Size_%d", sz), func(b *testing.B) {
			b.SetBytes(int64(sz))
			for i := 0; i < b.N; i++ {
				if _, err := merkle.HashTreeRoot(data); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
