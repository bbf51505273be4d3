// Package identity derives stable 32-byte identifiers for domain records
// from their canonical encodings. Identical logical content always yields
// the identical ID; any field mutation changes it.
package identity

import (
	"encoding/hex"
	"fmt"

	"github.com/latticelabs/canon/pkg/core"
	"github.com/latticelabs/canon/pkg/merkle"
	"github.com/latticelabs/canon/pkg/value"
)

// ResourceID identifies a resource descriptor record by content.
type ResourceID core.Hash

// ExprID identifies an expression term by content.
type ExprID core.Hash

// ComputeResourceID canonical-encodes a resource descriptor and returns its
// content hash. The descriptor must be a Record value.
func ComputeResourceID(rec value.Value) (ResourceID, error) {
	if rec.Kind() != value.KindRecord {
		return ResourceID{}, fmt.Errorf("%w: resource descriptor must be a record, got %s", core.ErrInvalidInput, rec.Kind())
	}
	h, err := merkle.Root(rec)
	if err != nil {
		return ResourceID{}, err
	}
	return ResourceID(h), nil
}

// ComputeExprID canonical-encodes an expression term and returns its content
// hash.
func ComputeExprID(expr value.Value) (ExprID, error) {
	h, err := merkle.Root(expr)
	if err != nil {
		return ExprID{}, err
	}
	return ExprID(h), nil
}

// ResourceIDFromBytes converts raw bytes into a ResourceID. Any length other
// than 32 is rejected.
func ResourceIDFromBytes(b []byte) (ResourceID, error) {
	h, err := core.HashFromBytes(b)
	if err != nil {
		return ResourceID{}, err
	}
	return ResourceID(h), nil
}

// ExprIDFromBytes converts raw bytes into an ExprID. Any length other than
// 32 is rejected.
func ExprIDFromBytes(b []byte) (ExprID, error) {
	h, err := core.HashFromBytes(b)
	if err != nil {
		return ExprID{}, err
	}
	return ExprID(h), nil
}

// Bytes returns a fresh copy of the ID bytes.
func (id ResourceID) Bytes() []byte { return core.Hash(id).Bytes() }

func (id ResourceID) String() string { return hex.EncodeToString(id[:]) }

// Bytes returns a fresh copy of the ID bytes.
func (id ExprID) Bytes() []byte { return core.Hash(id).Bytes() }

func (id ExprID) String() string { return hex.EncodeToString(id[:]) }
