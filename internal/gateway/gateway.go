// Package gateway exposes the sync client's local observability surface:
// health, transport status, Prometheus metrics, and an authenticated
// transport reset endpoint.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"feedwire/internal/capability"
	"feedwire/internal/transport"
)

// Negotiator is the slice of the transport negotiator the gateway needs.
type Negotiator interface {
	State() transport.State
	Reset()
}

// Capability reports the attachment capability verdict.
type Capability interface {
	State() capability.State
}

// Store reports the size of the published snapshot.
type Store interface {
	Len() int
}

// Gateway is the HTTP observability server. It is a leaf component;
// nothing imports it.
type Gateway struct {
	config     Config
	logger     *slog.Logger
	server     *http.Server
	negotiator Negotiator
	capability Capability
	store      Store
	metricsH   http.Handler
	startedAt  time.Time
	now        func() time.Time
}

// New builds a gateway. metricsHandler may be nil, in which case /metrics
// is not mounted.
func New(cfg Config, logger *slog.Logger, negotiator Negotiator, cap Capability, store Store, metricsHandler http.Handler) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:     cfg,
		logger:     logger,
		negotiator: negotiator,
		capability: cap,
		store:      store,
		metricsH:   metricsHandler,
		now:        time.Now,
	}
}

// Validate checks the bind address before Start.
func (g *Gateway) Validate() error {
	if _, err := net.ResolveTCPAddr("tcp", g.config.Bind); err != nil {
		return errors.New("gateway: invalid bind address: " + g.config.Bind)
	}
	return nil
}

// Start binds the listener and serves in a background goroutine.
func (g *Gateway) Start() error {
	g.startedAt = g.now()

	g.server = &http.Server{
		Addr:         g.config.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully with the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
