// Package channel defines the send-path contract shared by the reactive
// and polling channels and the dispatcher that routes a unified send
// operation to whichever channel the negotiator selected.
package channel

import (
	"context"

	"feedwire/pkg/feed"
)

// Sender is the mutation path of a transport channel. Both the reactive
// channel (socket submit) and the polling channel (HTTP submit) implement
// it.
type Sender interface {
	// Send delivers one message to the backend and waits for its verdict.
	Send(ctx context.Context, msg feed.Message) error
}

// Identity is the opaque sender identity stamped onto outbound messages.
// It is owned by an external collaborator (session storage); the core
// never mutates it.
type Identity struct {
	SenderID   string
	SenderName string
}

// Draft is the input to the unified send operation. Kind defaults to text
// when empty and no attachment is present.
type Draft struct {
	Content    string
	Kind       feed.Kind
	Attachment *feed.Attachment
}
