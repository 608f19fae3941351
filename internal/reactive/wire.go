package reactive

import "encoding/json"

// Envelope types exchanged over the subscription socket.
const (
	typeSubscribe = "subscribe"
	typeSnapshot  = "snapshot"
	typeSubmit    = "submit"
	typeAck       = "ack"
	typeError     = "error"
)

// envelope is the framing for every socket message. Snapshot frames carry
// the feed in Payload; submit/ack/error frames are correlated by ID.
type envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// wireError is the structured error attached to error frames. Code
// distinguishes "feature not deployed" from generic failures.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes with classification significance.
const (
	codeUnsupported    = "unsupported"
	codeNotImplemented = "not_implemented"
	codeConnectionLost = "connection_lost"
)
