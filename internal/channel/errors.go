package channel

import "errors"

// Sentinel errors for the dispatcher.
var (
	// ErrNotReady indicates a send was attempted before the negotiator
	// settled on a transport. Retryable once detection completes.
	ErrNotReady = errors.New("channel: no transport selected yet, try again shortly")

	// ErrAttachmentOnPolling indicates an attachment was sent while the
	// polling transport is active. The pull channel has no attachment
	// transport, so this is rejected before any network call and is not
	// retryable on this connection.
	ErrAttachmentOnPolling = errors.New("channel: attachments are unavailable on the polling connection")
)
