package app

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"feedwire/internal/config"
	"feedwire/internal/metrics"
	"feedwire/internal/polling"
	"feedwire/internal/transport"
	"feedwire/pkg/feed"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Version: "1",
		Backend: config.BackendConfig{
			BaseURL: "http://127.0.0.1:0",
			WSURL:   "ws://127.0.0.1:0/subscribe",
		},
		Topic:    "general",
		Identity: config.IdentityConfig{SenderID: "u1", SenderName: "alice"},
	}
	cfg.Cache.Path = filepath.Join(t.TempDir(), "feed.db")
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("fixture config invalid: %v", err)
	}
	return cfg
}

func TestNew_AssemblesClient(t *testing.T) {
	t.Parallel()

	client, err := New(testConfig(t), slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer func() { _ = client.cache.Close() }()

	if client.Dispatcher() == nil || client.Store() == nil {
		t.Fatal("client missing dispatcher or store")
	}
	if client.State() != transport.StateDetecting {
		t.Errorf("initial state = %v, want detecting", client.State())
	}
}

func TestApply_CountsChurn(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Cache.Path = "" // keep the store subscriber out of the way
	client, err := New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	snap := feed.Snapshot{{ID: "m1", Kind: feed.KindText, CreatedAt: 1}}
	if !client.apply(snap) {
		t.Fatal("first apply suppressed")
	}
	if client.apply(snap) {
		t.Fatal("identical apply not suppressed")
	}

	if got := testutil.ToFloat64(client.metrics.SnapshotsApplied); got != 1 {
		t.Errorf("snapshots_applied_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(client.metrics.SnapshotsSkipped); got != 1 {
		t.Errorf("snapshots_skipped_total = %v, want 1", got)
	}
}

// failingFetcher always reports connectivity loss.
type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string) (feed.Snapshot, error) {
	return nil, errors.New("connection refused")
}

func TestCountingFetcher_RecordsErrors(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	var f polling.Fetcher = &countingFetcher{inner: failingFetcher{}, metrics: m}

	_, err := f.Fetch(context.Background(), "general")
	if err == nil {
		t.Fatal("error swallowed by instrumentation")
	}

	if got := testutil.ToFloat64(m.FetchesTotal.WithLabelValues("polling")); got != 1 {
		t.Errorf("fetches_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FetchErrorsTotal.WithLabelValues("polling")); got != 1 {
		t.Errorf("fetch_errors_total = %v, want 1", got)
	}
}

// nopSender accepts every send.
type nopSender struct{}

func (nopSender) Send(context.Context, feed.Message) error { return nil }

func TestCountingSender_RecordsOutcome(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	s := &countingSender{inner: nopSender{}, transport: "reactive", metrics: m}

	if err := s.Send(context.Background(), feed.Message{ID: "m1", Kind: feed.KindText}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := testutil.ToFloat64(m.SendsTotal.WithLabelValues("reactive", "ok")); got != 1 {
		t.Errorf("sends_total{reactive,ok} = %v, want 1", got)
	}
}
