package gateway

import "fmt"

// ConnectionError means the appliance session could not be established.
// Fatal to the current operation only; the client retries lazily on next use.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to device at %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommunicationError means a fetch or push failed after the session was
// established. Transient; no automatic retry beyond the next poll cycle.
type CommunicationError struct {
	Op  string // "fetch" or "push"
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("device %s failed: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error { return e.Err }
