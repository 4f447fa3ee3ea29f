// Package ingesterr defines the error taxonomy shared across the ingestor.
//
// Categories map directly to the propagation policy: transient errors are
// retried by the caller, credential errors drive rotation in the
// Supervisor/discovery path, and parse errors are always non-fatal to the
// session that produced them.
package ingesterr

import (
	"errors"
	"fmt"
)

// Sentinel categories. Wrap these with fmt.Errorf("...: %w", ErrX) at the
// call site so errors.Is still matches while the message stays specific.
var (
	// ErrTransient marks a retryable I/O blip (transport, store, cache).
	ErrTransient = errors.New("transient I/O error")

	// ErrParse marks a single malformed message; the caller drops the
	// record and continues, it never propagates past the handler.
	ErrParse = errors.New("parse error")

	// ErrCredentialInvalid marks a 401/403 from a platform endpoint; the
	// credential must be rotated and deleted.
	ErrCredentialInvalid = errors.New("credential invalid")

	// ErrBusiness marks a platform business-error response code; the
	// credential must be rotated but kept.
	ErrBusiness = errors.New("business error response")

	// ErrSessionEnded marks a control-channel session termination signal;
	// it is not a failure, just a reason for the drain path.
	ErrSessionEnded = errors.New("session ended by control signal")

	// ErrPoolExhausted marks that every credential in the pool has been
	// tried within one discovery round.
	ErrPoolExhausted = errors.New("credential pool exhausted")

	// ErrPoolNotInitialized marks use of the credential pool before Load.
	ErrPoolNotInitialized = errors.New("credential pool not initialized")
)

// Transient wraps err as a transient I/O error.
func Transient(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrTransient, err)
}

// Parse wraps err as a single-message parse error.
func Parse(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrParse, err)
}

// Is reports whether err ultimately wraps target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
