package gindex

import "github.com/pkg/errors"

var (
	// ErrWrongType is returned when an operation's nested type differs from
	// the type the index is bound to.
	ErrWrongType = errors.New("wrong type")
	// ErrUnknownType is returned when a nested type is not registered.
	ErrUnknownType = errors.New("unknown type")
	// ErrKeyNotFound is returned by Get and Lookup for absent values or keys.
	ErrKeyNotFound = errors.New("key not found")
	// ErrDecode is returned for malformed or unsupported binary input.
	ErrDecode = errors.New("decode failure")
	// ErrInvalidPredicate is returned when a range predicate has the wrong kind.
	ErrInvalidPredicate = errors.New("invalid range predicate")
	// ErrInvalidBatch is returned by ValidateBatch.
	ErrInvalidBatch = errors.New("invalid batch")
)
