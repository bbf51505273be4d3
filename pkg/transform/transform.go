// Package transform wraps stored payloads in a small envelope, optionally
// compressing them. The envelope is storage-local and never part of the
// canonical encoding or content hash.
package transform

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/latticelabs/canon/pkg/core"
)

const (
	Magic   = "CANV"
	Version = 1
)

const (
	FlagCompressed = 1 << 0
)

const (
	AlgZstd = 1
)

// Transform defines the interface for encoding/decoding stored payloads.
type Transform interface {
	Name() string
	Encode(plain []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// New returns the transform selected by cfg.Name ("none", "" or "zstd").
func New(cfg core.TransformConfig) (Transform, error) {
	switch cfg.Name {
	case "none", "":
		return &noneTransform{}, nil
	case "zstd":
		return newZstd(cfg.ZstdLevel)
	default:
		return nil, fmt.Errorf("%w: unsupported transform %q", core.ErrInvalidInput, cfg.Name)
	}
}

type noneTransform struct{}

func (t *noneTransform) Name() string { return "none" }

func (t *noneTransform) Encode(plain []byte) ([]byte, error) {
	envelope := make([]byte, 0, 7+len(plain))
	envelope = append(envelope, Magic...)
	envelope = append(envelope, Version, 0, 0)
	return append(envelope, plain...), nil
}

func (t *noneTransform) Decode(stored []byte) ([]byte, error) {
	return unwrap(stored)
}

type zstdTransform struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

func newZstd(level int) (Transform, error) {
	lvl := zstd.EncoderLevel(level)
	if level == 0 {
		lvl = zstd.SpeedDefault
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(lvl))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &zstdTransform{encoder: enc, decoder: dec}, nil
}

func (t *zstdTransform) Name() string { return "zstd" }

func (t *zstdTransform) Encode(plain []byte) ([]byte, error) {
	compressed := t.encoder.EncodeAll(plain, nil)
	envelope := make([]byte, 0, 7+len(compressed))
	envelope = append(envelope, Magic...)
	envelope = append(envelope, Version, FlagCompressed, AlgZstd)
	return append(envelope, compressed...), nil
}

func (t *zstdTransform) Decode(stored []byte) ([]byte, error) {
	payload, err := unwrap(stored)
	if err != nil {
		return nil, err
	}
	flags := stored[5]
	if flags&FlagCompressed == 0 {
		return payload, nil
	}
	if stored[6] != AlgZstd {
		return nil, fmt.Errorf("%w: unsupported compression algorithm %d", core.ErrCorrupt, stored[6])
	}
	plain, err := t.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decompression failed: %v", core.ErrCorrupt, err)
	}
	return plain, nil
}

func unwrap(stored []byte) ([]byte, error) {
	if len(stored) < 7 {
		return nil, fmt.Errorf("%w: payload too small for envelope", core.ErrCorrupt)
	}
	if string(stored[:4]) != Magic {
		return nil, fmt.Errorf("%w: invalid envelope magic", core.ErrCorrupt)
	}
	if stored[4] != Version {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", core.ErrCorrupt, stored[4])
	}
	return stored[7:], nil
}
