package backend

import "feedwire/pkg/feed"

// feedResponse is the pull query payload.
type feedResponse struct {
	Messages feed.Snapshot `json:"messages"`
}

// submitRequest is the mutation payload.
type submitRequest struct {
	Topic   string       `json:"topic"`
	Message feed.Message `json:"message"`
}

// capabilityResponse is the probe payload.
type capabilityResponse struct {
	Enabled bool `json:"enabled"`
}

// apiError is the structured error payload the backend returns alongside
// non-2xx statuses. Code distinguishes "feature not deployed" from generic
// failures.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Error codes with classification significance.
const (
	codeUnsupported    = "unsupported"
	codeNotImplemented = "not_implemented"
)
