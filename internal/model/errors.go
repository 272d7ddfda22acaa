package model

import "errors"

var (
	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvariant marks programming or data errors that break a domain rule.
	ErrInvariant = errors.New("invariant violation")
)
