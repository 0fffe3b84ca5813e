package gateway

import (
	"errors"
	"fmt"
)

// ErrUnauthorized reports that the backend rejected the session token. The
// client reacts exactly once: clear the session store and send the caregiver
// back to login. Silent token refresh is deliberately not attempted.
var ErrUnauthorized = errors.New("gateway: session rejected")

// TransportError means no usable response was received at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is an HTTP 5xx from the backend.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("gateway: server failure: status %d", e.Status)
}
