// Package reactive implements the push-based feed channel: a WebSocket
// subscription that delivers snapshot frames without polling, plus the
// mutation path used to send messages while the subscription is active.
// The backend signals readiness by delivering an initial snapshot, which
// may be empty.
package reactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"feedwire/internal/backend"
	"feedwire/internal/transport"
	"feedwire/pkg/feed"
)

// ErrClosed indicates the channel has been stopped or the subscription
// dropped; sends on a closed channel fail fast.
var ErrClosed = errors.New("reactive: channel closed")

// Dialer opens the subscription socket. *backend.Client satisfies it.
type Dialer interface {
	Dial(ctx context.Context) (*websocket.Conn, error)
}

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Config controls the reactive channel.
type Config struct {
	// Topic is the feed to subscribe to.
	Topic string
}

// Option configures optional Channel behavior.
type Option func(*Channel)

// WithLogger injects a structured logger into the Channel.
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		if l != nil {
			c.logger = l
		}
	}
}

// Channel runs the push subscription. Snapshot frames go through the
// shared store's change detection (the apply callback); each one also
// produces a Ready status report, the first of which is what settles the
// negotiator on Reactive. A dropped subscription reports Errored once and
// the channel stays down until an external reset rebuilds it.
type Channel struct {
	cfg    Config
	dialer Dialer
	apply  func(feed.Snapshot) bool
	report func(transport.Status)
	logger *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan *wireError
}

// NewChannel creates a reactive Channel. apply publishes snapshots into
// the shared store; report surfaces channel status to the negotiator.
func NewChannel(cfg Config, dialer Dialer, apply func(feed.Snapshot) bool, report func(transport.Status), opts ...Option) *Channel {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		cfg:     cfg,
		dialer:  dialer,
		apply:   apply,
		report:  report,
		logger:  slog.New(nopHandler{}),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		pending: make(map[string]chan *wireError),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start dials, subscribes, and launches the read loop in a goroutine.
// Failures surface asynchronously as an Errored status report.
func (c *Channel) Start() {
	go c.run()
}

// Stop tears the subscription down. No status or snapshot is emitted
// afterward. Safe to call multiple times.
func (c *Channel) Stop() {
	c.stopOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, "client stopping")
		}
		c.mu.Unlock()
	})
	<-c.done
}

// Send submits a message through the subscription socket and waits for
// the backend's acknowledgement. Write failures and dropped connections
// are connectivity-class; an explicit unsupported code maps to
// backend.ErrNotSupported.
func (c *Channel) Send(ctx context.Context, msg feed.Message) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", backend.ErrConnectivity, ErrClosed)
	}
	id := uuid.NewString()
	ch := make(chan *wireError, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("reactive: marshal message: %w", err)
	}
	if err := c.write(ctx, conn, envelope{
		Type:    typeSubmit,
		ID:      id,
		Topic:   c.cfg.Topic,
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("%w: submit write: %w", backend.ErrConnectivity, err)
	}

	select {
	case werr := <-ch:
		if werr == nil {
			return nil
		}
		switch werr.Code {
		case codeUnsupported, codeNotImplemented:
			return fmt.Errorf("%w: %s", backend.ErrNotSupported, werr.Message)
		case codeConnectionLost:
			return fmt.Errorf("%w: %s", backend.ErrConnectivity, werr.Message)
		default:
			return fmt.Errorf("reactive: submit rejected: %s: %s", werr.Code, werr.Message)
		}
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return fmt.Errorf("%w: %w", backend.ErrConnectivity, ErrClosed)
	}
}

// run dials and subscribes, then consumes frames until the connection
// drops or Stop is called.
func (c *Channel) run() {
	defer close(c.done)

	conn, err := c.dialer.Dial(c.ctx)
	if err != nil {
		c.reportErr(fmt.Errorf("reactive: dial: %w", err))
		return
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(c.ctx, conn, envelope{Type: typeSubscribe, Topic: c.cfg.Topic}); err != nil {
		c.reportErr(fmt.Errorf("reactive: subscribe: %w", err))
		c.teardown(conn)
		return
	}
	c.logger.Info("reactive subscription opened", "topic", c.cfg.Topic)

	c.readLoop(conn)
}

// readLoop consumes frames until the connection drops or Stop is called.
func (c *Channel) readLoop(conn *websocket.Conn) {
	defer c.teardown(conn)

	for {
		_, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return // stopped, stay silent
			}
			c.reportErr(fmt.Errorf("%w: subscription dropped: %w", backend.ErrConnectivity, err))
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn("reactive: skipping malformed frame", "error", err)
			continue
		}
		c.handleFrame(env)
	}
}

func (c *Channel) handleFrame(env envelope) {
	switch env.Type {
	case typeSnapshot:
		var snap feed.Snapshot
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			c.logger.Warn("reactive: skipping malformed snapshot", "error", err)
			return
		}
		if err := snap.Validate(); err != nil {
			c.logger.Warn("reactive: skipping invalid snapshot", "error", err)
			return
		}
		c.apply(snap)
		c.report(transport.Ready(snap))

	case typeAck, typeError:
		c.mu.Lock()
		ch, ok := c.pending[env.ID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("reactive: unmatched response", "id", env.ID, "type", env.Type)
			return
		}
		if env.Type == typeAck {
			ch <- nil
			return
		}
		werr := env.Error
		if werr == nil {
			werr = &wireError{Code: "unknown", Message: "error frame without payload"}
		}
		ch <- werr

	default:
		c.logger.Debug("reactive: ignoring frame", "type", env.Type)
	}
}

func (c *Channel) write(ctx context.Context, conn *websocket.Conn, env envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// teardown clears the connection and fails in-flight sends so nothing
// blocks on a socket that will never answer.
func (c *Channel) teardown(conn *websocket.Conn) {
	_ = conn.Close(websocket.StatusNormalClosure, "")
	c.mu.Lock()
	c.conn = nil
	for id, ch := range c.pending {
		ch <- &wireError{Code: codeConnectionLost, Message: "subscription dropped"}
		delete(c.pending, id)
	}
	c.mu.Unlock()
}

func (c *Channel) reportErr(err error) {
	c.logger.Warn("reactive channel error", "error", err)
	c.report(transport.Errored(err))
}
