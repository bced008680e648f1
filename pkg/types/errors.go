// Standard errors for the intake store and services.
package types

import (
	"errors"
	"fmt"
)

// Record errors.
var (
	ErrInvalidKey = errors.New("CID must not be empty")
	ErrNotFound   = errors.New("record not found")
	ErrDecode     = errors.New("stored record is not valid JSON")
)

// StoreError wraps a failure from the underlying database. Op names the
// primitive (exists, fetch, insert, update, list, init, open).
type StoreError struct {
	Op  string
	CID string
	Err error
}

func (e *StoreError) Error() string {
	if e.CID == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %q: %v", e.Op, e.CID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// CompletionError is returned when the AI completion endpoint rejects a
// request. Status is the HTTP status code and Body the response payload.
type CompletionError struct {
	Status int
	Body   string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed: status %d: %s", e.Status, e.Body)
}
