package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrItemNotFound signals a catalog item missing from the record store.
	ErrItemNotFound = errors.New("catalog item not found")
	// ErrDocumentNotFound signals a missing index document.
	ErrDocumentNotFound = errors.New("index document not found")
	// ErrVersionConflict signals a stale upsert discarded by the version guard.
	ErrVersionConflict = errors.New("version conflict")
	// ErrInvalidEvent signals a malformed change event that retrying cannot fix.
	ErrInvalidEvent = errors.New("invalid change event")
	// ErrReindexRunning signals that a full reindex is already in progress.
	ErrReindexRunning = errors.New("reindex already running")
	// ErrCheckpointRegression signals an attempt to move a checkpoint backwards.
	ErrCheckpointRegression = errors.New("checkpoint regression")
)

// TransientError wraps failures of the record store or the search index that
// are worth retrying with backoff. Anything not wrapped in it is permanent.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient marks err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// InvalidEvent builds an ErrInvalidEvent with a reason.
func InvalidEvent(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEvent, reason)
}
