package core

import (
	"errors"
)

var (
	ErrInvalidInput = errors.New("canon: invalid input")
	ErrSerialize    = errors.New("canon: serialization failed")
	ErrDeserialize  = errors.New("canon: deserialization failed")
	ErrNotFound     = errors.New("canon: not found")
	ErrCorrupt      = errors.New("canon: corrupt data")
	ErrTooLarge     = errors.New("canon: too large")
	ErrClosed       = errors.New("canon: store closed")
	ErrInternal     = errors.New("canon: internal invariant violation")
)
