package usecase

import "github.com/cockroachdb/errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("resource not found")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrConflict              = errors.New("conflict")
)

// Update cycle failure classes. Causes are marked, not replaced, so both the
// class and the underlying error stay matchable with errors.Is.
var (
	ErrFetch           = errors.New("fetch failed")
	ErrMerge           = errors.New("merge failed")
	ErrRecompute       = errors.New("recompute failed")
	ErrTrain           = errors.New("train failed")
	ErrCycleInProgress = errors.New("update cycle already in progress")
)

func markAs(err error, class error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.Mark(err, class), msg)
}
