// Package polling implements the pull-based feed channel: a recurring
// fetch on a fixed interval, suspended while the hosting surface is
// hidden, with an immediate staleness-recovery fetch on return to visible.
package polling

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"feedwire/internal/transport"
	"feedwire/internal/visibility"
	"feedwire/pkg/feed"
)

// nopHandler is a slog.Handler that discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// Fetcher issues one pull query. *backend.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, topic string) (feed.Snapshot, error)
}

// Submitter posts a message through the mutation endpoint. *backend.Client
// satisfies it. The pull channel has no attachment transport; the
// dispatcher rejects attachments before this is ever reached.
type Submitter interface {
	Submit(ctx context.Context, topic string, msg feed.Message) error
}

// ErrNoSubmitter indicates the poller was wired without a mutation path.
var ErrNoSubmitter = errors.New("polling: submitter not configured")

// Config controls polling behavior.
type Config struct {
	// Topic is the feed to poll.
	Topic string

	// Interval is the recurring fetch period. Default: 5s.
	Interval time.Duration

	// StaleThreshold is how long since the last successful fetch before a
	// hide/show cycle triggers an immediate out-of-cycle fetch.
	// Default: 10s.
	StaleThreshold time.Duration
}

// defaults fills zero-value fields with sensible defaults.
func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = 10 * time.Second
	}
}

// Option configures optional Poller behavior.
type Option func(*Poller)

// WithLogger injects a structured logger into the Poller.
func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithVisibility attaches a visibility source. Without one the poller
// behaves as permanently visible.
func WithVisibility(src visibility.Source) Option {
	return func(p *Poller) { p.vis = src }
}

// WithSubmitter attaches the mutation path used by Send.
func WithSubmitter(s Submitter) Option {
	return func(p *Poller) { p.submitter = s }
}

// Poller runs the pull channel. Each fetch result goes through the shared
// store's change detection (the apply callback) before it is surfaced, and
// every settled fetch produces a status report for the negotiator. A
// failed fetch reports Errored but does not stop the recurring timer.
type Poller struct {
	cfg       Config
	fetcher   Fetcher
	submitter Submitter
	apply     func(feed.Snapshot) bool
	report    func(transport.Status)
	vis       visibility.Source
	logger    *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	forceCh  chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	mu          sync.Mutex
	lastSuccess time.Time

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewPoller creates a Poller. apply publishes a fetched snapshot into the
// shared store; report surfaces channel status to the negotiator.
func NewPoller(cfg Config, fetcher Fetcher, apply func(feed.Snapshot) bool, report func(transport.Status), opts ...Option) *Poller {
	cfg.defaults()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		cfg:     cfg,
		fetcher: fetcher,
		apply:   apply,
		report:  report,
		logger:  slog.New(nopHandler{}),
		ctx:     ctx,
		cancel:  cancel,
		forceCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop in a goroutine. The first fetch is
// issued immediately so the negotiator can consult polling readiness
// before a full interval elapses.
func (p *Poller) Start() {
	go p.loop()
}

// Stop cancels the loop, the recurring timer, and the visibility
// subscription together. No status or snapshot is emitted afterward.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		if p.vis != nil {
			p.vis.Stop()
		}
	})
	<-p.done
}

// ForceFetch requests one out-of-cycle fetch. It is dropped while the
// surface is hidden or a force request is already pending.
func (p *Poller) ForceFetch() {
	select {
	case p.forceCh <- struct{}{}:
	default:
	}
}

// Send posts a message through the mutation endpoint and requests an
// out-of-cycle fetch so the send surfaces in the next snapshot without
// waiting a full interval. The store is never mutated optimistically.
func (p *Poller) Send(ctx context.Context, msg feed.Message) error {
	if p.submitter == nil {
		return ErrNoSubmitter
	}
	if err := p.submitter.Submit(ctx, p.cfg.Topic, msg); err != nil {
		return err
	}
	p.ForceFetch()
	return nil
}

// LastSuccess returns the time of the last successful fetch.
func (p *Poller) LastSuccess() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastSuccess
}

// loop runs until Stop. Visibility handling lives entirely here, so the
// hidden flag needs no locking.
func (p *Poller) loop() {
	defer close(p.done)

	p.fetch()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	var visCh <-chan visibility.State
	if p.vis != nil {
		visCh = p.vis.Events()
	}

	hidden := false
	for {
		select {
		case <-p.ctx.Done():
			return

		case <-ticker.C:
			if !hidden {
				p.fetch()
			}

		case <-p.forceCh:
			if !hidden {
				p.fetch()
			}

		case state, ok := <-visCh:
			if !ok {
				visCh = nil
				continue
			}
			switch state {
			case visibility.Hidden:
				if !hidden {
					hidden = true
					ticker.Stop()
					p.logger.Debug("polling suspended, surface hidden")
				}
			case visibility.Visible:
				if !hidden {
					continue
				}
				hidden = false
				if elapsed := p.now().Sub(p.LastSuccess()); elapsed > p.cfg.StaleThreshold {
					p.logger.Debug("stale after hide/show cycle, fetching now",
						"elapsed", elapsed,
						"threshold", p.cfg.StaleThreshold,
					)
					p.fetch()
				}
				ticker.Reset(p.cfg.Interval)
				p.logger.Debug("polling resumed, surface visible")
			}
		}
	}
}

// fetch issues one pull query and surfaces the result.
func (p *Poller) fetch() {
	snap, err := p.fetcher.Fetch(p.ctx, p.cfg.Topic)
	if p.ctx.Err() != nil {
		// Stopped mid-fetch; swallow the result either way.
		return
	}
	if err != nil {
		p.logger.Warn("poll fetch failed", "topic", p.cfg.Topic, "error", err)
		p.report(transport.Errored(err))
		return
	}

	p.mu.Lock()
	p.lastSuccess = p.now()
	p.mu.Unlock()

	p.apply(snap)
	p.report(transport.Ready(snap))
}
