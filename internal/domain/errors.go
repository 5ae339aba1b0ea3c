package domain

import (
	"errors"
	"fmt"

	m "mender.dev/pkg/mender/internal/model"
)

// Sentinel errors of the repair pipeline.
var (
	// ErrParseFailure marks an analysis that could not be obtained from a collaborator.
	ErrParseFailure = errors.New("parse failure")
	// ErrEditConflict marks an edit dropped because a higher-priority edit took its line.
	ErrEditConflict = errors.New("edit conflict")
	// ErrStaleEdit marks an edit whose target line no longer matches the text.
	ErrStaleEdit = errors.New("stale edit")
	// ErrCriticalIO marks a file that could not be read or written.
	ErrCriticalIO = errors.New("critical io failure")
)

// CriticalIOError aborts the processing of one file.
type CriticalIOError struct {
	Path m.Path
	Op   string
	Err  error
}

func (e *CriticalIOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both ErrCriticalIO and the underlying cause to errors.Is.
func (e *CriticalIOError) Unwrap() []error {
	return []error{ErrCriticalIO, e.Err}
}
