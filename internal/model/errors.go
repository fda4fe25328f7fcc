package model

import (
	"errors"
)

// Terminal reasons shared by processes, jobs and the scheduler. ErrCancelled
// is a user initiated stop and must never be reported as a failure.
var (
	ErrCancelled = errors.New("cancelled")
	ErrFailed    = errors.New("failed")
)

// IsCancelled reports whether err carries ErrCancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
