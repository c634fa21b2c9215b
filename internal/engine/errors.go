package engine

import (
	"errors"
	"fmt"
)

// ErrOffline is returned for GET requests attempted without connectivity.
// Reads are never queued: replaying a stale read later would be worse than
// failing fast.
var ErrOffline = errors.New("no connectivity: request not attempted")

// TransportError means no response was received at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a 5xx response. Retried the same as a transport failure.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d", e.Status)
}

// ClientError is a 4xx response. Terminal: the server will never accept the
// request, so retrying is pointless.
type ClientError struct {
	Status int
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: status %d", e.Status)
}

// StorageError wraps a failed persistence operation during enqueue.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
