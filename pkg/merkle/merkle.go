// Package merkle derives 32-byte content hashes from canonical encodings.
// The encoding is split into 32-byte chunks, padded to a power of two, and
// reduced bottom-up with BLAKE3 over concatenated child pairs. Variable-size
// values mix the encoding's byte length into the root so different-length
// inputs sharing a zero-padded prefix cannot collide.
package merkle

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/blake3"

	"github.com/latticelabs/canon/pkg/codec"
	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/value"
)

// ChunkSize is the leaf width of the hash tree.
const ChunkSize = 32

// HashTreeRoot merkleizes a byte buffer without length mixing. Use it for
// encodings whose length is implied by a fixed schema. An empty buffer maps
// to the root of a single zero chunk.
func HashTreeRoot(data []byte) (core.Hash, error) {
	return merkleize(chunkify(data))
}

// RootWithLength merkleizes a byte buffer and mixes in its length:
// H(root || length_le_32B). Use it for variable-size encodings.
func RootWithLength(data []byte) (core.Hash, error) {
	root, err := merkleize(chunkify(data))
	if err != nil {
		return core.Hash{}, err
	}
	return mixLength(root, uint64(len(data))), nil
}

// Root computes the content hash of a value: canonical-encode, then
// merkleize, mixing in the length exactly when the value's shape is
// variable-size.
func Root(v value.Value) (core.Hash, error) {
	encoded, err := codec.Encode(v)
	if err != nil {
		return core.Hash{}, err
	}
	return RootOfEncoded(encoded, schema.Of(v))
}

// RootOfEncoded computes the content hash of an already-encoded value whose
// shape is described by s.
func RootOfEncoded(encoded []byte, s *schema.Schema) (core.Hash, error) {
	if _, fixed := s.FixedSize(); fixed {
		return HashTreeRoot(encoded)
	}
	return RootWithLength(encoded)
}

// chunkify splits data into 32-byte chunks, zero-padding the final chunk and
// padding the chunk count up to a power of two. Empty input yields a single
// zero chunk.
func chunkify(data []byte) []core.Hash {
	n := (len(data) + ChunkSize - 1) / ChunkSize
	if n == 0 {
		n = 1
	}
	padded := 1
	for padded < n {
		padded <<= 1
	}
	chunks := make([]core.Hash, padded)
	for i := 0; i < n; i++ {
		copy(chunks[i][:], data[i*ChunkSize:min(len(data), (i+1)*ChunkSize)])
	}
	return chunks
}

// merkleize reduces a power-of-two chunk list to a single root. A single
// chunk is its own root.
func merkleize(chunks []core.Hash) (core.Hash, error) {
	if len(chunks) == 0 {
		return core.Hash{}, fmt.Errorf("%w: merkleize over zero chunks", core.ErrInternal)
	}
	if len(chunks)&(len(chunks)-1) != 0 {
		return core.Hash{}, fmt.Errorf("%w: chunk count %d is not a power of two", core.ErrInternal, len(chunks))
	}
	level := chunks
	for len(level) > 1 {
		next := make([]core.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0], nil
}

func hashPair(left, right core.Hash) core.Hash {
	var buf [2 * ChunkSize]byte
	copy(buf[:ChunkSize], left[:])
	copy(buf[ChunkSize:], right[:])
	return blake3.Sum256(buf[:])
}

func mixLength(root core.Hash, length uint64) core.Hash {
	var lenChunk core.Hash
	binary.LittleEndian.PutUint64(lenChunk[:8], length)
	return hashPair(root, lenChunk)
}
