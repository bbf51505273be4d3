// Package store persists values by content hash in an embedded Pebble
// database. Each value is stored as its transformed canonical encoding plus
// the canonical-CBOR schema descriptor needed to decode it again.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/latticelabs/canon/pkg/codec"
	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/merkle"
	"github.com/latticelabs/canon/pkg/schema"
	"github.com/latticelabs/canon/pkg/transform"
	"github.com/latticelabs/canon/pkg/value"
)

var (
	prefixValue  = []byte("v:")
	prefixSchema = []byte("s:")
)

// Store defines the interface for the content-addressed value store.
type Store interface {
	// Put persists a value and returns its content hash. Re-putting an
	// existing value is a no-op returning the same hash.
	Put(ctx context.Context, v value.Value) (core.Hash, error)
	// Get loads, verifies, and decodes the value stored under h.
	Get(ctx context.Context, h core.Hash) (value.Value, error)
	Has(ctx context.Context, h core.Hash) (bool, error)
	Delete(ctx context.Context, h core.Hash) error
	// Iterate walks all stored values in hash order, passing each one's
	// content hash, plain canonical encoding, and schema.
	Iterate(ctx context.Context, fn func(h core.Hash, encoded []byte, s *schema.Schema) error) error
	Close() error
}

type store struct {
	db      *pebble.DB
	tr      transform.Transform
	schemas schema.Codec
	limits  core.LimitsConfig
	sync    bool

	putMu sync.Mutex // single-writer invariant

	mu     sync.RWMutex
	closed bool
}

// Open opens (creating if necessary) a value store under cfg.Store.Dir, or
// cfg.Dir/values when unset.
func Open(cfg core.Config) (Store, error) {
	dir := cfg.Store.Dir
	if dir == "" {
		if cfg.Dir == "" {
			return nil, fmt.Errorf("%w: store directory not specified", core.ErrInvalidInput)
		}
		dir = filepath.Join(cfg.Dir, "values")
	}

	tr, err := transform.New(cfg.Transform)
	if err != nil {
		return nil, err
	}

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db: %w", err)
	}

	return &store{
		db:      db,
		tr:      tr,
		schemas: schema.NewCodec(),
		limits:  cfg.Limits,
		sync:    cfg.Store.SyncWrites,
	}, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return core.ErrClosed
	}
	return nil
}

func (s *store) writeOpts() *pebble.WriteOptions {
	if s.sync {
		return pebble.Sync
	}
	return pebble.NoSync
}

func (s *store) Put(ctx context.Context, v value.Value) (core.Hash, error) {
	if err := s.checkOpen(); err != nil {
		return core.Hash{}, err
	}
	if ctx.Err() != nil {
		return core.Hash{}, ctx.Err()
	}

	encoded, err := codec.Encode(v)
	if err != nil {
		return core.Hash{}, err
	}
	if s.limits.MaxEncodedBytes > 0 && uint64(len(encoded)) > s.limits.MaxEncodedBytes {
		return core.Hash{}, fmt.Errorf("%w: encoding of %d bytes exceeds limit %d", core.ErrTooLarge, len(encoded), s.limits.MaxEncodedBytes)
	}

	shape := schema.Of(v)
	h, err := merkle.RootOfEncoded(encoded, shape)
	if err != nil {
		return core.Hash{}, err
	}

	s.putMu.Lock()
	defer s.putMu.Unlock()

	exists, err := s.Has(ctx, h)
	if err != nil {
		return core.Hash{}, err
	}
	if exists {
		return h, nil
	}

	stored, err := s.tr.Encode(encoded)
	if err != nil {
		return core.Hash{}, err
	}
	schemaBytes, err := s.schemas.Encode(shape)
	if err != nil {
		return core.Hash{}, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(valueKey(h), stored, nil); err != nil {
		return core.Hash{}, err
	}
	if err := batch.Set(schemaKey(h), schemaBytes, nil); err != nil {
		return core.Hash{}, err
	}
	if err := batch.Commit(s.writeOpts()); err != nil {
		return core.Hash{}, fmt.Errorf("failed to commit value: %w", err)
	}
	return h, nil
}

func (s *store) Get(ctx context.Context, h core.Hash) (value.Value, error) {
	encoded, shape, err := s.load(ctx, h)
	if err != nil {
		return value.Value{}, err
	}
	return codec.DecodeWithLimits(encoded, shape, codec.Strict, s.limits)
}

func (s *store) Has(ctx context.Context, h core.Hash) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	_, closer, err := s.db.Get(valueKey(h))
	if err != nil {
		if err == pebble.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	closer.Close()
	return true, nil
}

func (s *store) Delete(ctx context.Context, h core.Hash) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	exists, err := s.Has(ctx, h)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", core.ErrNotFound, h)
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(valueKey(h), nil); err != nil {
		return err
	}
	if err := batch.Delete(schemaKey(h), nil); err != nil {
		return err
	}
	return batch.Commit(s.writeOpts())
}

func (s *store) Iterate(ctx context.Context, fn func(h core.Hash, encoded []byte, sch *schema.Schema) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefixValue,
		UpperBound: prefixEnd(prefixValue),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h, err := core.HashFromBytes(iter.Key()[len(prefixValue):])
		if err != nil {
			return fmt.Errorf("%w: malformed store key", core.ErrCorrupt)
		}
		encoded, shape, err := s.load(ctx, h)
		if err != nil {
			return err
		}
		if err := fn(h, encoded, shape); err != nil {
			return err
		}
	}
	return iter.Error()
}

// load fetches and verifies the plain encoding and schema for h.
func (s *store) load(ctx context.Context, h core.Hash) ([]byte, *schema.Schema, error) {
	if err := s.checkOpen(); err != nil {
		return nil, nil, err
	}
	if ctx.Err() != nil {
		return nil, nil, ctx.Err()
	}

	stored, err := s.get(valueKey(h))
	if err != nil {
		return nil, nil, err
	}
	schemaBytes, err := s.get(schemaKey(h))
	if err != nil {
		return nil, nil, err
	}

	shape, err := s.schemas.Decode(schemaBytes)
	if err != nil {
		return nil, nil, err
	}
	encoded, err := s.tr.Decode(stored)
	if err != nil {
		return nil, nil, err
	}

	// The key is the content hash; recompute it to catch bit rot.
	got, err := merkle.RootOfEncoded(encoded, shape)
	if err != nil {
		return nil, nil, err
	}
	if got != h {
		return nil, nil, fmt.Errorf("%w: content hash mismatch for %s", core.ErrCorrupt, h)
	}
	return encoded, shape, nil
}

// get reads a key, copying the value out of pebble's buffer.
func (s *store) get(key []byte) ([]byte, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("%w: key %x", core.ErrNotFound, key)
		}
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func valueKey(h core.Hash) []byte {
	return append(append([]byte{}, prefixValue...), h[:]...)
}

func schemaKey(h core.Hash) []byte {
	return append(append([]byte{}, prefixSchema...), h[:]...)
}

func prefixEnd(prefix []byte) []byte {
	end := append([]byte{}, prefix...)
	end[len(end)-1]++
	return end
}
