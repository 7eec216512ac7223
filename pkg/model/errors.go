package model

import "errors"

var (
	// ErrNoIdentity means no caller identity was resolvable. Writes must
	// refuse rather than proceed under a null identity.
	ErrNoIdentity = errors.New("no caller identity")

	// ErrNotFound is a normal failure for a missing room or message.
	ErrNotFound = errors.New("not found")

	// ErrValidation rejects bad input before any write happens.
	ErrValidation = errors.New("validation failed")
)
