package session

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned by Signer when no wallet is connected.
var ErrNotConnected = errors.New("wallet not connected")

// ConnectionError is a discovery or connect failure. It is recorded on the
// session and shown inline; nothing retries it.
type ConnectionError struct {
	Op  string // "discover", "connect", "disconnect" or "refresh"
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
