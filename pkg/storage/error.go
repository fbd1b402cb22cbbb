package storage

import "errors"

// ErrNilSnapshot is returned when a nil snapshot is stored.
var ErrNilSnapshot = errors.New("cannot store nil snapshot")

// ErrMissingTraceID is returned when a snapshot without a trace id is stored.
var ErrMissingTraceID = errors.New("snapshot has no trace id")

// NotFoundError is returned when a snapshot doesn't exist in the store.
type NotFoundError struct {
	ID string
}

func (e NotFoundError) Error() string {
	if e.ID == "" {
		return "snapshot not found"
	}

	return "snapshot not found: " + e.ID
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
