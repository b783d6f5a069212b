package crdt

import "github.com/pkg/errors"

var (
	// ErrInvalidOperation is returned when an operation does not belong to a
	// capability or carries invalid arguments.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidEffect is returned when an effect cannot be applied by a capability.
	ErrInvalidEffect = errors.New("invalid effect")
	// ErrInvalidState is returned when a state was produced by another capability.
	ErrInvalidState = errors.New("invalid state")
	// ErrNoPermissions is returned by the bounded counter when an actor tries to
	// consume more than it holds locally.
	ErrNoPermissions = errors.New("no permissions")
	// ErrDecode is returned for malformed encoded states or values.
	ErrDecode = errors.New("decode failure")
)
