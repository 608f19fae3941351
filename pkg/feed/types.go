// Package feed defines the backend-agnostic data contract for the message
// feed: messages, attachments, ordered snapshots, and the structural
// comparison used to suppress redundant snapshot propagation.
package feed

import (
	"errors"
	"fmt"
)

// Kind discriminates the content variant of a Message.
type Kind string

// Supported message kinds.
const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// Attachment references binary content attached to a message. Exactly one
// of Handle (a backend storage reference) or Inline (a base64-encoded
// payload) must be set.
type Attachment struct {
	Handle string `json:"handle,omitempty"`
	Inline string `json:"inline,omitempty"`
}

// Validate checks the handle/inline exclusivity rule.
func (a Attachment) Validate() error {
	switch {
	case a.Handle == "" && a.Inline == "":
		return errors.New("feed: attachment has neither handle nor inline payload")
	case a.Handle != "" && a.Inline != "":
		return errors.New("feed: attachment has both handle and inline payload")
	}
	return nil
}

// Message is a single entry in the feed. The ID is opaque, unique, and
// stable across re-fetches. CreatedAt is a monotonic logical timestamp
// assigned by the backend, not a wall-clock authority.
type Message struct {
	ID         string      `json:"id"`
	SenderID   string      `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Content    string      `json:"content"`
	Kind       Kind        `json:"kind"`
	Attachment *Attachment `json:"attachment,omitempty"`
	CreatedAt  int64       `json:"created_at"`
}

// Validate checks the kind/attachment invariant: image and file messages
// must carry an attachment, text messages must not.
func (m Message) Validate() error {
	if m.ID == "" {
		return errors.New("feed: message has empty ID")
	}
	switch m.Kind {
	case KindText:
		if m.Attachment != nil {
			return fmt.Errorf("feed: text message %s carries an attachment", m.ID)
		}
	case KindImage, KindFile:
		if m.Attachment == nil {
			return fmt.Errorf("feed: %s message %s has no attachment", m.Kind, m.ID)
		}
		if err := m.Attachment.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("feed: message %s has unknown kind %q", m.ID, m.Kind)
	}
	return nil
}

// Snapshot is an ordered view of the feed, oldest first.
type Snapshot []Message

// Validate checks snapshot-level invariants: CreatedAt is non-decreasing
// and message IDs are unique.
func (s Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, m := range s {
		if err := m.Validate(); err != nil {
			return err
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("feed: duplicate message ID %s", m.ID)
		}
		seen[m.ID] = struct{}{}
		if i > 0 && m.CreatedAt < s[i-1].CreatedAt {
			return fmt.Errorf("feed: message %s breaks createdAt ordering", m.ID)
		}
	}
	return nil
}

// Equal reports whether two snapshots are structurally identical: same
// length and, at every index, the same (ID, Content, SenderName, CreatedAt)
// tuple. Reordering, insertion, deletion, and field mutation all count as
// a change. Callers use a false result to swap in the new snapshot and a
// true result to drop it, so downstream consumers never observe two
// identical snapshots in sequence.
func Equal(a, b Snapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].Content != b[i].Content ||
			a[i].SenderName != b[i].SenderName ||
			a[i].CreatedAt != b[i].CreatedAt {
			return false
		}
	}
	return true
}
