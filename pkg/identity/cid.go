package identity

import (
	"bytes"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/latticelabs/canon/pkg/core"
)

// Builder defines the interface for bridging content hashes into CIDs for
// interchange with content-addressed tooling.
type Builder interface {
	// ValueCID hashes a canonical encoding and returns a raw-codec CIDv1.
	ValueCID(encoded []byte) (cid.Cid, error)
	// EnvelopeCID hashes a DAG-CBOR envelope and returns a dag-cbor CIDv1.
	EnvelopeCID(dagCbor []byte) (cid.Cid, error)
	// WrapHash wraps an already-computed content hash into a raw-codec CIDv1
	// without rehashing.
	WrapHash(h core.Hash) (cid.Cid, error)
	// Verify recomputes the digest of data and checks it against c.
	Verify(c cid.Cid, data []byte) error
}

type builder struct{}

// NewBuilder returns a new CID builder implementation.
func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) ValueCID(encoded []byte) (cid.Cid, error) {
	return b.buildCID(cid.Raw, encoded)
}

func (b *builder) EnvelopeCID(dagCbor []byte) (cid.Cid, error) {
	return b.buildCID(cid.DagCBOR, dagCbor)
}

func (b *builder) buildCID(codec uint64, data []byte) (cid.Cid, error) {
	hash, err := multihash.Sum(data, multihash.BLAKE3, core.HashSize)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to compute multihash: %w", err)
	}
	return cid.NewCidV1(codec, hash), nil
}

func (b *builder) WrapHash(h core.Hash) (cid.Cid, error) {
	mh, err := multihash.Encode(h[:], multihash.BLAKE3)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to wrap digest: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh), nil
}

func (b *builder) Verify(c cid.Cid, data []byte) error {
	prefix := c.Prefix()
	hash, err := multihash.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}
	if !bytes.Equal(c.Hash(), hash) {
		return fmt.Errorf("%w: CID mismatch", core.ErrCorrupt)
	}
	return nil
}
