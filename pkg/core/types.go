package core

import (
	"encoding/hex"
	"fmt"
)

// HashSize is the byte length of every content hash and derived identifier.
const HashSize = 32

// Hash is a 32-byte content hash: the hash-tree-root of a canonical encoding.
type Hash [HashSize]byte

// Bytes returns a fresh copy of the hash bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashFromBytes converts a raw byte slice into a Hash. The slice must be
// exactly HashSize bytes long.
func HashFromBytes(b []byte) (Hash, error) {
	if len(b) != HashSize {
		return Hash{}, fmt.Errorf("%w: hash must be %d bytes, got %d", ErrInvalidInput, HashSize, len(b))
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}
