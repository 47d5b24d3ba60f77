package services

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOrUnreadableInput means a document could not be decoded as text
	// or produced no records. The caller keeps its current dataset.
	ErrEmptyOrUnreadableInput = errors.New("empty or unreadable input")

	// ErrEmptyDataset means statistics were requested over zero records.
	ErrEmptyDataset = errors.New("empty dataset")

	// ErrMalformedRow matches every *MalformedRowError via errors.Is.
	ErrMalformedRow = errors.New("malformed row")

	ErrUnknownShape    = errors.New("unknown input shape")
	ErrUnknownGroupKey = errors.New("unknown group key")
)

// MalformedRowError describes a long-format row with too few columns.
type MalformedRowError struct {
	Line   int
	Fields int
	Want   int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("line %d: %d fields, want at least %d", e.Line, e.Fields, e.Want)
}

func (e *MalformedRowError) Is(target error) bool {
	return target == ErrMalformedRow
}
