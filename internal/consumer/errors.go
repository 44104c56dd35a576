package consumer

import "errors"

// ErrMalformedEvent marks payloads that can never be processed. The
// dispatcher drops such messages without requeue regardless of mode.
var ErrMalformedEvent = errors.New("malformed event")

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

// Transient marks an error as a retryable infrastructure failure, such as a
// store timeout. In requeue mode the dispatcher nacks these with requeue so
// the broker redelivers the message.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
