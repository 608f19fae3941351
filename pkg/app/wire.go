package app

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedwire/internal/backend"
	"feedwire/internal/cache"
	"feedwire/internal/capability"
	"feedwire/internal/channel"
	"feedwire/internal/config"
	"feedwire/internal/cron"
	"feedwire/internal/gateway"
	"feedwire/internal/metrics"
	"feedwire/internal/polling"
	"feedwire/internal/reactive"
	"feedwire/internal/store"
	"feedwire/internal/transport"
	"feedwire/internal/visibility"
	"feedwire/pkg/feed"
)

// Client is the assembled sync client: both channels, the negotiator,
// the dispatcher, and the supporting surfaces (cache, gateway, metrics,
// scheduler).
type Client struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	backend    *backend.Client
	cache      *cache.Cache // nil when disabled
	store      *store.Store
	negotiator *transport.Negotiator
	probe      *capability.Probe
	visibility *visibility.Signals
	poller     *polling.Poller
	dispatcher *channel.Dispatcher
	gateway    *gateway.Gateway
	scheduler  *cron.Scheduler

	// The reactive channel is torn down and rebuilt on Reset; everything
	// else lives for the process.
	mu       sync.Mutex
	reactive *reactive.Channel
}

// New assembles a Client from a validated configuration. Nothing is
// started; call Start.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(prometheus.NewRegistry()),
	}

	c.backend = backend.NewClient(backend.ClientConfig{
		BaseURL: cfg.Backend.BaseURL,
		WSURL:   cfg.Backend.WSURL,
		Token:   cfg.Backend.Token,
		Timeout: cfg.Backend.Timeout,
	})

	if cfg.Cache.Path != "" {
		opened, err := cache.Open(cfg.Cache, cache.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		c.cache = opened
	}

	c.store = store.New(store.WithLogger(logger))
	if c.cache != nil {
		c.store.Subscribe(func(snap feed.Snapshot) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.cache.Save(ctx, cfg.Topic, snap); err != nil {
				logger.Warn("caching snapshot failed", "error", err)
			}
		})
	}

	c.negotiator = transport.NewNegotiator(
		transport.Config{DetectionTimeout: cfg.Transport.DetectionTimeout},
		transport.WithLogger(logger),
		transport.WithOnTransition(func(from, to transport.State) {
			c.metrics.TransportState.Set(float64(to))
			if from == transport.StateReactive && to == transport.StatePolling {
				c.metrics.FailoversTotal.Inc()
			}
		}),
	)

	c.probe = capability.NewProbe(
		&countingProber{inner: c.backend, metrics: c.metrics},
		capability.WithLogger(logger),
	)

	c.visibility = visibility.NewSignals(logger)
	c.poller = polling.NewPoller(
		polling.Config{
			Topic:          cfg.Topic,
			Interval:       cfg.Transport.PollInterval,
			StaleThreshold: cfg.Transport.StaleThreshold,
		},
		&countingFetcher{inner: c.backend, metrics: c.metrics},
		c.apply,
		func(st transport.Status) { c.negotiator.Report(transport.SourcePolling, st) },
		polling.WithLogger(logger),
		polling.WithVisibility(c.visibility),
		polling.WithSubmitter(c.backend),
	)

	c.reactive = c.newReactiveChannel()

	c.dispatcher = channel.NewDispatcher(
		c.negotiator,
		c.probe,
		&countingSender{inner: reactiveSender{c}, transport: "reactive", metrics: c.metrics},
		&countingSender{inner: c.poller, transport: "polling", metrics: c.metrics},
		channel.Identity{SenderID: cfg.Identity.SenderID, SenderName: cfg.Identity.SenderName},
		channel.WithLogger(logger),
	)

	var metricsHandler http.Handler = promhttp.HandlerFor(
		c.metrics.Registry(),
		promhttp.HandlerOpts{},
	)
	c.gateway = gateway.New(cfg.Gateway, logger, gatewayNegotiator{c}, c.probe, c.store, metricsHandler)
	if err := c.gateway.Validate(); err != nil {
		return nil, err
	}

	c.scheduler = cron.NewScheduler(logger)
	if c.cache != nil {
		if err := c.scheduler.RegisterJob(&cron.CacheSweepJob{Cache: c.cache, Logger: logger}); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// newReactiveChannel builds a fresh reactive channel bound to the shared
// store and negotiator. Callers own starting it.
func (c *Client) newReactiveChannel() *reactive.Channel {
	return reactive.NewChannel(
		reactive.Config{Topic: c.cfg.Topic},
		c.backend,
		c.apply,
		func(st transport.Status) { c.negotiator.Report(transport.SourceReactive, st) },
		reactive.WithLogger(c.logger),
	)
}

// apply publishes a snapshot through the store and records churn.
func (c *Client) apply(snap feed.Snapshot) bool {
	applied := c.store.Apply(snap)
	if applied {
		c.metrics.SnapshotsApplied.Inc()
	} else {
		c.metrics.SnapshotsSkipped.Inc()
	}
	return applied
}

// Dispatcher exposes the unified send operation.
func (c *Client) Dispatcher() *channel.Dispatcher {
	return c.dispatcher
}

// Store exposes the published snapshot for rendering.
func (c *Client) Store() *store.Store {
	return c.store
}

// State reports the current transport selection.
func (c *Client) State() transport.State {
	return c.negotiator.State()
}

// Reset rewinds the transport decision and rebuilds the reactive
// channel, so both channels race again. The polling channel keeps
// running throughout; the displayed snapshot is never cleared.
func (c *Client) Reset() {
	c.mu.Lock()
	old := c.reactive
	c.reactive = c.newReactiveChannel()
	fresh := c.reactive
	c.mu.Unlock()

	c.logger.Info("transport reset, rebuilding reactive channel")
	old.Stop()
	c.negotiator.Reset()
	fresh.Start()
	c.poller.ForceFetch()
}

// reactiveSender routes sends to whichever reactive channel is current.
type reactiveSender struct{ c *Client }

func (s reactiveSender) Send(ctx context.Context, msg feed.Message) error {
	s.c.mu.Lock()
	ch := s.c.reactive
	s.c.mu.Unlock()
	return ch.Send(ctx, msg)
}

// gatewayNegotiator exposes the client to the gateway: reads come from
// the negotiator, reset goes through the full channel rebuild.
type gatewayNegotiator struct{ c *Client }

func (g gatewayNegotiator) State() transport.State { return g.c.State() }
func (g gatewayNegotiator) Reset()                 { g.c.Reset() }

// countingFetcher wraps a polling.Fetcher with fetch counters.
type countingFetcher struct {
	inner   polling.Fetcher
	metrics *metrics.Metrics
}

func (f *countingFetcher) Fetch(ctx context.Context, topic string) (feed.Snapshot, error) {
	f.metrics.FetchesTotal.WithLabelValues("polling").Inc()
	snap, err := f.inner.Fetch(ctx, topic)
	if err != nil {
		f.metrics.FetchErrorsTotal.WithLabelValues("polling").Inc()
	}
	return snap, err
}

// countingSender wraps a channel.Sender with send outcome counters.
type countingSender struct {
	inner     channel.Sender
	transport string
	metrics   *metrics.Metrics
}

func (s *countingSender) Send(ctx context.Context, msg feed.Message) error {
	err := s.inner.Send(ctx, msg)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.SendsTotal.WithLabelValues(s.transport, outcome).Inc()
	return err
}

// countingProber wraps the capability probe target with result counters.
type countingProber struct {
	inner   capability.Prober
	metrics *metrics.Metrics
}

func (p *countingProber) ProbeUploads(ctx context.Context) error {
	err := p.inner.ProbeUploads(ctx)
	switch {
	case err == nil:
		p.metrics.ProbeResultsTotal.WithLabelValues("supported").Inc()
	case backend.IsNotSupported(err):
		p.metrics.ProbeResultsTotal.WithLabelValues("unsupported").Inc()
	default:
		p.metrics.ProbeResultsTotal.WithLabelValues("error").Inc()
	}
	return err
}
