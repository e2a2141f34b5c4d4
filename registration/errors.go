package registration

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAborted is the outcome of a cancelled registration: an explicit
	// Cancel, the cancel key, or the caller's context. It is not an
	// application failure.
	ErrAborted = errors.New("registration: aborted")

	// ErrNoKeySelected means the key phase ended without a qualifying key.
	ErrNoKeySelected = errors.New("registration: no key selected")

	// ErrInProgress is returned by Register while another registration runs.
	ErrInProgress = errors.New("registration: already in progress")

	// ErrNotInProgress is returned by Cancel when nothing runs.
	ErrNotInProgress = errors.New("registration: none in progress")

	// ErrSourceClosed means the event source stopped delivering events.
	ErrSourceClosed = errors.New("registration: event source closed")

	errFinished = errors.New("registration: finished")
)

// IsAborted reports whether err is a cancellation outcome.
func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

// aborted converts the cancellation cause of ctx into the aborted outcome.
func aborted(ctx context.Context) error {
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrAborted) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrAborted, cause)
}

// closed reports a source that stopped, which is a cancellation when the
// registration context is already done.
func closed(ctx context.Context) error {
	if ctx.Err() != nil {
		return aborted(ctx)
	}
	return ErrSourceClosed
}
