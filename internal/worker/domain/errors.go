package domain

import "errors"

var (
	// ErrUnknownKind is returned when a message carries a job kind the worker
	// does not recognize
	ErrUnknownKind = errors.New("unknown job kind")

	// ErrInvalidPayload is returned when a job payload does not decode into
	// the typed record for its kind
	ErrInvalidPayload = errors.New("invalid job payload")

	// ErrDataIntegrity is returned when a required local record is missing or
	// malformed; redelivering the job cannot fix this condition
	ErrDataIntegrity = errors.New("required local record missing or malformed")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
