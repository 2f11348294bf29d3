package objectapi

import "errors"

var (
	// ErrNilInfo reports a nil object passed to a write path. Programmer error.
	ErrNilInfo = errors.New("nil info object")
	// ErrInvalidCodeName reports a malformed code name, distinct from not-unique
	// so callers can present the proper message.
	ErrInvalidCodeName = errors.New("invalid code name")
	// ErrCodeNameNotUnique reports a code name collision detected inside the
	// uniqueness check transaction.
	ErrCodeNameNotUnique = errors.New("code name not unique")
	// ErrProviderMismatch reports an operation invoked against the wrong provider
	// for the given object type.
	ErrProviderMismatch = errors.New("object type does not match provider")
	// ErrProviderInvalidated reports a write through a provider instance that has
	// been replaced in the registry.
	ErrProviderInvalidated = errors.New("provider instance has been invalidated")
	// ErrUnsupportedOperation reports a capability the concrete provider or task
	// receiver does not implement. Intentionally a hard failure.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)
