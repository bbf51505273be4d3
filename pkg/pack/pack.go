// Package pack exchanges store snapshots as CARv2 archives. Each stored
// value travels as one block: a canonical-CBOR envelope holding the schema
// descriptor and the canonical encoding, addressed by a dag-cbor CID.
package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	carv2 "github.com/ipld/go-car/v2"
	"github.com/ipld/go-car/v2/blockstore"

	"github.com/latticelabs/canon/pkg/codec"
	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/identity"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/store"
)

// EnvelopeVersion is the on-wire version of the export envelope.
const EnvelopeVersion = 1

// Envelope is the per-value block format inside an archive.
type Envelope struct {
	Version uint16 `cbor:"version"`
	Schema  []byte `cbor:"schema"`
	Payload []byte `cbor:"payload"`
}

// Export writes every value in the store to a CARv2 archive at path,
// returning the number of exported values.
func Export(ctx context.Context, st store.Store, path string) (int, error) {
	bs, err := blockstore.OpenReadWrite(path, []cid.Cid{})
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	em, _ := cbor.CanonicalEncOptions().EncMode()
	schemas := schema.NewCodec()
	cids := identity.NewBuilder()

	count := 0
	err = st.Iterate(ctx, func(h core.Hash, encoded []byte, sch *schema.Schema) error {
		schemaBytes, err := schemas.Encode(sch)
		if err != nil {
			return err
		}
		raw, err := em.Marshal(Envelope{
			Version: EnvelopeVersion,
			Schema:  schemaBytes,
			Payload: encoded,
		})
		if err != nil {
			return err
		}
		c, err := cids.EnvelopeCID(raw)
		if err != nil {
			return err
		}
		blk, err := blocks.NewBlockWithCid(raw, c)
		if err != nil {
			return err
		}
		if err := bs.Put(ctx, blk); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		os.Remove(path)
		return 0, err
	}

	if err := bs.Finalize(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return count, nil
}

// Import reads a CARv2 archive and puts every enveloped value into the
// store, returning the number of imported values. Block CIDs are verified
// against their payloads, and each value's content hash is recomputed by the
// store on put.
func Import(ctx context.Context, st store.Store, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	br, err := carv2.NewBlockReader(f)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read archive: %v", core.ErrCorrupt, err)
	}

	cids := identity.NewBuilder()
	schemas := schema.NewCodec()

	count := 0
	for {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		blk, err := br.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("%w: failed to read block: %v", core.ErrCorrupt, err)
		}

		if err := cids.Verify(blk.Cid(), blk.RawData()); err != nil {
			return count, err
		}

		var env Envelope
		if err := cbor.Unmarshal(blk.RawData(), &env); err != nil {
			return count, fmt.Errorf("%w: failed to unmarshal envelope: %v", core.ErrCorrupt, err)
		}
		if env.Version != EnvelopeVersion {
			return count, fmt.Errorf("%w: unsupported envelope version %d", core.ErrCorrupt, env.Version)
		}

		sch, err := schemas.Decode(env.Schema)
		if err != nil {
			return count, err
		}
		v, err := codec.Decode(env.Payload, sch, codec.Strict)
		if err != nil {
			return count, err
		}
		if _, err := st.Put(ctx, v); err != nil {
			return count, err
		}
		count++
	}
}
