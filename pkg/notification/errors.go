package notification

import "errors"

var (
	// ErrInvalidArgument marks notifications that can never be processed: missing
	// required fields or an unrecognized event type.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotImplemented is returned by scopes that cannot restore diagnostic settings.
	ErrNotImplemented = errors.New("not implemented")
)
