package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common coordination failures.
var (
	// ErrInvalidRequest indicates a request that names no deliverable target,
	// such as a send with neither a room id nor a recipient.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound indicates an idempotent lookup that matched nothing.
	ErrNotFound = errors.New("requested resource not found")
)
