// ABOUTME: Ephemeral TCP port allocation by asking the OS for a free port.
// ABOUTME: Advisory only: the port is free at check time, not guaranteed at use time.
package ports

import (
	"fmt"
	"net"
)

// AllocationError reports that the OS refused to hand out an ephemeral port.
// Callers treat this as fatal; there is nothing to retry against a full
// port space.
type AllocationError struct {
	Err error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("port allocation failed: %v", e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }

// Allocate binds a listener to port 0, reads back the OS-assigned port,
// releases the socket, and returns the port number.
//
// The returned port was free at the instant of the check. A concurrent bind
// by an unrelated process can still steal it before the caller's server
// starts; the caller must treat its own bind failure as a separate,
// retryable error.
func Allocate() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, &AllocationError{Err: err}
	}
	port := ln.Addr().(*net.TCPAddr).Port
	if err := ln.Close(); err != nil {
		return 0, &AllocationError{Err: err}
	}
	return port, nil
}
