package client

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no store base URL could be resolved. Sync is
// disabled but the application stays usable.
var ErrNotConfigured = errors.New("no store configured")

// NetworkError means the store was unreachable. Cached data is
// retained by callers; there is no automatic retry.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: store unreachable at %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError means the store responded with a failure status.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: server error (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: server error (status %d)", e.Op, e.Status)
}
