package domain

import "errors"

var (
	// ErrShapeMismatch reports grid axes or value dimensions that are
	// inconsistent within one dataset or between two datasets expected to align.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrTimeAlignment reports a timestamp required by a computation that is
	// absent from one of its inputs.
	ErrTimeAlignment = errors.New("time alignment")

	// ErrInsufficientData reports a time step with fewer than three valid
	// points to interpolate from. It is non-fatal: the step becomes no-data.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrNotFound reports that a loader found no records for a request.
	ErrNotFound = errors.New("not found")
)

// IsPermanent reports whether err belongs to the grid error taxonomy.
// Such failures come from the data itself and do not resolve on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrShapeMismatch) ||
		errors.Is(err, ErrTimeAlignment) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrNotFound)
}
