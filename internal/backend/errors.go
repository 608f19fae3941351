package backend

import "errors"

// Sentinel errors for backend operations. The two classes matter to
// callers: connectivity failures are transient (retry, failover, keep the
// poll timer running) and unsupported-feature failures are permanent for
// the session (cached by the capability probe).
var (
	// ErrConnectivity indicates a network-level or server-side failure
	// that says nothing about feature availability.
	ErrConnectivity = errors.New("backend: connectivity failure")

	// ErrNotSupported indicates the backend explicitly reported that the
	// requested feature is not deployed.
	ErrNotSupported = errors.New("backend: feature not supported")
)

// IsConnectivity reports whether err is or wraps ErrConnectivity.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// IsNotSupported reports whether err is or wraps ErrNotSupported.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
