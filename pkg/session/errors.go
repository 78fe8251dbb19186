package session

import (
	"errors"
	"fmt"
)

var (
	// ErrIngestionRejected is returned when the engine refused a submitted unit.
	// No data was consumed; the caller may retry or skip the unit.
	ErrIngestionRejected = errors.New("session: ingestion rejected")

	// ErrDecodeFault is returned when the engine failed while producing output.
	// Buffered state is suspect; Flush or a new session is needed to recover.
	ErrDecodeFault = errors.New("session: decode fault")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session: session closed")
)

// Reasons attached to DecodeError.
const (
	ReasonNotConsumed = "Data can't be consumed"
	ReasonInvalidData = "Invalid data"
)

// DecodeError is a per-call decoding failure.
// Kind is ErrIngestionRejected or ErrDecodeFault.
type DecodeError struct {
	Kind   error
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// OpenError is the panic value of New when the engine cannot be opened.
// It is never returned as an error.
type OpenError struct {
	Engine string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("session: cannot instantiate the %s decoder: %v", e.Engine, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
