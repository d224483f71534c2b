package model

import "errors"

var (
	// ErrInvalidArgument marks caller errors: bad agent counts, out-of-range
	// progress, malformed coordinates. Wrap it with context via fmt.Errorf.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound is returned for unknown sessions and agents.
	ErrNotFound = errors.New("not found")
)
