package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrValidation indicates a post-build invariant violation; the
	// artifact must not be published
	ErrValidation = errors.New("validation failed")

	// ErrStability indicates a chart_id changed for a business key
	// shared between two generations
	ErrStability = errors.New("chart id stability violated")

	// ErrCollision indicates two songs claim the same (scope, alias)
	ErrCollision = errors.New("alias collision")

	// ErrParse indicates malformed upstream data at the parsing boundary
	ErrParse = errors.New("parse failed")

	// ErrInvalidConfig indicates invalid or missing configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")
)
