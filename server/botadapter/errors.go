package botadapter

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument is returned when a required argument is missing or empty.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotImplemented is returned by adapter operations that are out of scope.
	ErrNotImplemented = errors.New("not implemented")
)
