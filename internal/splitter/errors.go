package splitter

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInputNotFound means the source path does not name an existing file.
	ErrInputNotFound = errors.New("file not found")
	// ErrNotPDF means the source exists but its magic bytes are not PDF.
	ErrNotPDF = errors.New("not a PDF document")
	// ErrNoContent means every computed range was empty; nothing to write.
	ErrNoContent = errors.New("no content pages outside marker pages")
	// ErrLocked means another run holds the source.
	ErrLocked = errors.New("source is locked by another run")
)

// RenderError reports that the source could not be rasterized. It aborts
// the run before anything is written.
type RenderError struct {
	Path string
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Path, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// PersistenceError reports that output Index could not be staged, verified
// or committed. Written lists the files left on disk before Index, in output
// order. Staged lists files still in the staging dir from Index onward,
// which only happens when a commit rename fails. The source is never
// removed when this error is returned.
type PersistenceError struct {
	Index   int
	Range   ContentRange
	Path    string
	Written []string
	Staged  []string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist output %d (pages %s) to %s: %v", e.Index, e.Range, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Kind maps an error to a short label used for metrics and the run ledger.
func Kind(err error) string {
	if err == nil {
		return "ok"
	}

	var renderErr *RenderError
	var persistErr *PersistenceError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrInputNotFound):
		return "not_found"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrNoContent):
		return "no_content"
	case errors.As(err, &renderErr):
		return "render"
	case errors.As(err, &persistErr):
		return "persistence"
	}
	return "other"
}
