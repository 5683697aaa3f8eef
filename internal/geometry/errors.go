package geometry

import "errors"

var (
	// ErrDegenerate marks zero-area or collapsed geometry. Callers log it and
	// continue with the best-effort result returned alongside it.
	ErrDegenerate = errors.New("degenerate geometry")

	// ErrInvalidGeometry is returned when coordinates cannot be decoded.
	ErrInvalidGeometry = errors.New("invalid geometry")
)
