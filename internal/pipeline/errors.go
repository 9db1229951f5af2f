package pipeline

import "errors"

var (
	// ErrNoNumericData is returned when projection or ranking is requested
	// for a dataset without numeric columns.
	ErrNoNumericData = errors.New("dataset has no numeric columns")
	// ErrInvalidRadius is returned for a NaN or infinite radius.
	ErrInvalidRadius = errors.New("radius must be a finite number")
	// ErrUnknownRow is returned when a selection names a row id the dataset lacks.
	ErrUnknownRow = errors.New("unknown row id")
	// ErrNonFinite is returned when feature values are too large for their
	// variance to fit in a float64.
	ErrNonFinite = errors.New("feature variance overflows float64")
)
