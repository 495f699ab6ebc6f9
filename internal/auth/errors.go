package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("ldapauth: invalid configuration")
	// ErrMissingOptions is returned by New when no options were given at all.
	ErrMissingOptions = fmt.Errorf("%w: options are required", ErrInvalidConfig)

	// Attempt errors
	ErrCallbackPanic = errors.New("ldapauth: verify callback panicked")
)
