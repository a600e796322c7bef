// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad credentials or token).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnauthenticated indicates a request that needs a signed-in caller arrived without one.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrPermissionDenied indicates the rule engine rejected the operation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrInvalidArgument indicates a malformed request (bad path, bad query, bad file).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")
)
