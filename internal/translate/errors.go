package translate

import "errors"

var (
	// ErrInvalidDateTime is returned when a timestamp or interval cannot be
	// parsed.
	ErrInvalidDateTime = errors.New("invalid datetime format")

	// ErrInvalidGeometry is returned when a footprint cannot be converted.
	ErrInvalidGeometry = errors.New("invalid geometry")
)
