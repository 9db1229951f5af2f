package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier indicates a dataset name that could escape the data directory.
	ErrInvalidIdentifier = errors.New("invalid dataset identifier")
	// ErrNotFound indicates the dataset does not exist in the data directory.
	ErrNotFound = errors.New("dataset not found")
	// ErrParse is matched by every *ParseError via errors.Is.
	ErrParse = errors.New("dataset parse error")
)

// ParseError indicates the tabular source exists but cannot be decoded.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "parse error"
	}
	if e.Name != "" {
		return fmt.Sprintf("error reading dataset %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("error reading dataset: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrParse) match any ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrParse }
