package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"feedwire/internal/backend"
	"feedwire/internal/capability"
	"feedwire/internal/transport"
	"feedwire/pkg/feed"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Negotiator is the slice of the transport negotiator the dispatcher
// needs: the current selection plus the failover transition.
type Negotiator interface {
	State() transport.State
	Failover()
}

// Prober is the attachment capability gate.
type Prober interface {
	EnsureSupported(ctx context.Context) error
}

// Option configures optional Dispatcher behavior.
type Option func(*Dispatcher)

// WithLogger injects a structured logger into the Dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher routes the unified send operation to the active channel and
// enforces the per-channel attachment constraints. It never mutates the
// shared snapshot store: a successful send surfaces through the active
// channel's next snapshot, so confirmed and displayed state cannot
// diverge.
type Dispatcher struct {
	negotiator Negotiator
	probe      Prober
	reactive   Sender
	polling    Sender
	identity   Identity
	logger     *slog.Logger
}

// NewDispatcher wires the dispatcher to both channels.
func NewDispatcher(negotiator Negotiator, probe Prober, reactive, polling Sender, identity Identity, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		negotiator: negotiator,
		probe:      probe,
		reactive:   reactive,
		polling:    polling,
		identity:   identity,
		logger:     slog.New(nopHandler{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send composes a message from the draft and routes it to the active
// transport.
//
//   - Reactive: an attachment first passes the capability gate; an
//     unsupported verdict is permanent and no fallback is attempted. A
//     connectivity-class failure fails the transport over to polling and,
//     only when no attachment is involved, retries the send once there.
//   - Polling: attachments are rejected before any network call.
//   - Detecting: ErrNotReady; retry once detection settles.
func (d *Dispatcher) Send(ctx context.Context, draft Draft) error {
	msg, err := d.compose(draft)
	if err != nil {
		return err
	}

	switch d.negotiator.State() {
	case transport.StateReactive:
		return d.sendReactive(ctx, msg)
	case transport.StatePolling:
		if msg.Attachment != nil {
			return ErrAttachmentOnPolling
		}
		return d.polling.Send(ctx, msg)
	default:
		return ErrNotReady
	}
}

func (d *Dispatcher) sendReactive(ctx context.Context, msg feed.Message) error {
	if msg.Attachment != nil {
		if err := d.probe.EnsureSupported(ctx); err != nil {
			return err
		}
	}

	err := d.reactive.Send(ctx, msg)
	if err == nil {
		return nil
	}
	if !backend.IsConnectivity(err) {
		return err
	}

	// The push channel is unusable for sending; move the session to
	// polling. Capability failures never reach this path.
	d.logger.Warn("reactive send failed, failing over to polling", "error", err)
	d.negotiator.Failover()

	if msg.Attachment != nil {
		// No attachment transport on the pull channel; surface the
		// original failure rather than silently degrading.
		return err
	}
	return d.polling.Send(ctx, msg)
}

// compose builds and validates the outbound message. The backend assigns
// the authoritative CreatedAt; the client-side ID keeps the submit
// idempotent across retries.
func (d *Dispatcher) compose(draft Draft) (feed.Message, error) {
	kind := draft.Kind
	if kind == "" {
		kind = feed.KindText
		if draft.Attachment != nil {
			kind = feed.KindFile
		}
	}

	msg := feed.Message{
		ID:         uuid.NewString(),
		SenderID:   d.identity.SenderID,
		SenderName: d.identity.SenderName,
		Content:    draft.Content,
		Kind:       kind,
		Attachment: draft.Attachment,
	}
	if err := msg.Validate(); err != nil {
		return feed.Message{}, fmt.Errorf("channel: invalid draft: %w", err)
	}
	return msg, nil
}

// Probe is a convenience accessor for surfaces that show capability state.
func (d *Dispatcher) Probe() Prober {
	return d.probe
}

// Unsupported reports whether err is the permanent attachment verdict
// (either the capability probe's or the polling constraint).
func Unsupported(err error) bool {
	return capability.IsUnsupported(err) || errors.Is(err, ErrAttachmentOnPolling)
}
