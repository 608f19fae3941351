package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedwire/internal/backend"
	"feedwire/internal/capability"
	"feedwire/internal/transport"
	"feedwire/pkg/feed"
)

var testIdentity = Identity{SenderID: "u1", SenderName: "alice"}

func reactiveNegotiator() *transport.Negotiator {
	n := transport.NewNegotiator(transport.Config{})
	n.Report(transport.SourceReactive, transport.Ready(nil))
	return n
}

func pollingNegotiator() *transport.Negotiator {
	n := transport.NewNegotiator(transport.Config{})
	n.Report(transport.SourceReactive, transport.Errored(errors.New("refused")))
	n.Report(transport.SourcePolling, transport.Ready(nil))
	return n
}

// okProber reports the capability as supported.
type okProber struct{ calls atomic.Int64 }

func (p *okProber) EnsureSupported(context.Context) error {
	p.calls.Add(1)
	return nil
}

// deadProber reports the permanent unsupported verdict.
type deadProber struct{}

func (deadProber) EnsureSupported(context.Context) error {
	return capability.ErrUnsupported
}

func TestDispatcher_DetectingRejectsSend(t *testing.T) {
	t.Parallel()
	reactive := &MockSender{}
	polling := &MockSender{}
	d := NewDispatcher(transport.NewNegotiator(transport.Config{}), &okProber{}, reactive, polling, testIdentity)

	err := d.Send(context.Background(), Draft{Content: "hi"})
	if !errors.Is(err, ErrNotReady) {
		t.Fatalf("Send() error = %v, want ErrNotReady", err)
	}
	if len(reactive.Sent())+len(polling.Sent()) != 0 {
		t.Error("send reached a channel before a transport was selected")
	}
}

func TestDispatcher_ReactiveTextSend(t *testing.T) {
	t.Parallel()
	reactive := &MockSender{}
	polling := &MockSender{}
	prober := &okProber{}
	d := NewDispatcher(reactiveNegotiator(), prober, reactive, polling, testIdentity)

	if err := d.Send(context.Background(), Draft{Content: "hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	sent := reactive.Sent()
	if len(sent) != 1 {
		t.Fatalf("reactive sends = %d, want 1", len(sent))
	}
	msg := sent[0]
	if msg.ID == "" {
		t.Error("message sent without a client-side ID")
	}
	if msg.Kind != feed.KindText || msg.SenderName != "alice" || msg.Content != "hi" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if prober.calls.Load() != 0 {
		t.Error("capability probed for a plain text send")
	}
}

func TestDispatcher_ReactiveAttachmentProbesFirst(t *testing.T) {
	t.Parallel()
	reactive := &MockSender{}
	prober := &okProber{}
	d := NewDispatcher(reactiveNegotiator(), prober, reactive, &MockSender{}, testIdentity)

	err := d.Send(context.Background(), Draft{
		Content:    "see attached",
		Attachment: &feed.Attachment{Handle: "h1"},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if prober.calls.Load() != 1 {
		t.Errorf("probe calls = %d, want 1", prober.calls.Load())
	}
	if sent := reactive.Sent(); len(sent) != 1 || sent[0].Kind != feed.KindFile {
		t.Errorf("unexpected reactive sends: %+v", sent)
	}
}

func TestDispatcher_ReactiveAttachmentUnsupportedNoFallback(t *testing.T) {
	t.Parallel()
	reactive := &MockSender{}
	polling := &MockSender{}
	d := NewDispatcher(reactiveNegotiator(), deadProber{}, reactive, polling, testIdentity)

	err := d.Send(context.Background(), Draft{
		Attachment: &feed.Attachment{Handle: "h1"},
	})
	if !Unsupported(err) {
		t.Fatalf("Send() error = %v, want unsupported verdict", err)
	}
	if len(reactive.Sent())+len(polling.Sent()) != 0 {
		t.Error("unsupported attachment still reached a channel")
	}
}

func TestDispatcher_ConnectivityFailureFailsOverAndRetriesOnce(t *testing.T) {
	t.Parallel()
	neg := reactiveNegotiator()
	reactive := &MockSender{SendFunc: func(context.Context, feed.Message) error {
		return fmt.Errorf("%w: socket gone", backend.ErrConnectivity)
	}}
	polling := &MockSender{}
	d := NewDispatcher(neg, &okProber{}, reactive, polling, testIdentity)

	if err := d.Send(context.Background(), Draft{Content: "hi"}); err != nil {
		t.Fatalf("Send() error = %v, want nil after polling retry", err)
	}
	if neg.State() != transport.StatePolling {
		t.Errorf("negotiator state = %v, want polling after failover", neg.State())
	}
	if len(polling.Sent()) != 1 {
		t.Errorf("polling sends = %d, want exactly 1 retry", len(polling.Sent()))
	}
}

func TestDispatcher_ConnectivityFailureWithAttachmentDoesNotRetry(t *testing.T) {
	t.Parallel()
	neg := reactiveNegotiator()
	reactive := &MockSender{SendFunc: func(context.Context, feed.Message) error {
		return fmt.Errorf("%w: socket gone", backend.ErrConnectivity)
	}}
	polling := &MockSender{}
	d := NewDispatcher(neg, &okProber{}, reactive, polling, testIdentity)

	err := d.Send(context.Background(), Draft{Attachment: &feed.Attachment{Handle: "h1"}})
	if !backend.IsConnectivity(err) {
		t.Fatalf("Send() error = %v, want the original connectivity failure", err)
	}
	if neg.State() != transport.StatePolling {
		t.Errorf("negotiator state = %v, want polling after failover", neg.State())
	}
	if len(polling.Sent()) != 0 {
		t.Error("attachment send retried on the attachment-less polling channel")
	}
}

func TestDispatcher_NonConnectivityFailureDoesNotFailOver(t *testing.T) {
	t.Parallel()
	neg := reactiveNegotiator()
	reactive := &MockSender{SendFunc: func(context.Context, feed.Message) error {
		return errors.New("message rejected: too long")
	}}
	polling := &MockSender{}
	d := NewDispatcher(neg, &okProber{}, reactive, polling, testIdentity)

	if err := d.Send(context.Background(), Draft{Content: "hi"}); err == nil {
		t.Fatal("Send() = nil, want the rejection error")
	}
	if neg.State() != transport.StateReactive {
		t.Errorf("negotiator state = %v, business errors must not fail over", neg.State())
	}
	if len(polling.Sent()) != 0 {
		t.Error("business error triggered a polling retry")
	}
}

func TestDispatcher_PollingTextSend(t *testing.T) {
	t.Parallel()
	polling := &MockSender{}
	d := NewDispatcher(pollingNegotiator(), &okProber{}, &MockSender{}, polling, testIdentity)

	if err := d.Send(context.Background(), Draft{Content: "hi"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(polling.Sent()) != 1 {
		t.Errorf("polling sends = %d, want 1", len(polling.Sent()))
	}
}

func TestDispatcher_PollingRejectsAttachmentBeforeNetwork(t *testing.T) {
	t.Parallel()
	reactive := &MockSender{}
	polling := &MockSender{}
	prober := &okProber{}
	d := NewDispatcher(pollingNegotiator(), prober, reactive, polling, testIdentity)

	err := d.Send(context.Background(), Draft{Attachment: &feed.Attachment{Handle: "h1"}})
	if !errors.Is(err, ErrAttachmentOnPolling) {
		t.Fatalf("Send() error = %v, want ErrAttachmentOnPolling", err)
	}
	if len(reactive.Sent())+len(polling.Sent()) != 0 {
		t.Error("rejected attachment still produced a network call")
	}
	if prober.calls.Load() != 0 {
		t.Error("rejected attachment still probed the capability")
	}
}

func TestDispatcher_ConcurrentAttachmentSendsProbeOnce(t *testing.T) {
	t.Parallel()

	// A real probe backed by a blocking prober: all concurrent sends must
	// share one in-flight probe.
	block := make(chan struct{})
	var probeCalls atomic.Int64
	probe := capability.NewProbe(probeFunc(func(context.Context) error {
		probeCalls.Add(1)
		<-block
		return nil
	}))
	d := NewDispatcher(reactiveNegotiator(), probe, &MockSender{}, &MockSender{}, testIdentity)

	const senders = 8
	var wg sync.WaitGroup
	for range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Send(context.Background(), Draft{Attachment: &feed.Attachment{Handle: "h1"}})
		}()
	}

	for probeCalls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	close(block)
	wg.Wait()

	if got := probeCalls.Load(); got != 1 {
		t.Errorf("probe requests = %d, want exactly 1 for %d concurrent sends", got, senders)
	}
}

// probeFunc adapts a function to capability.Prober.
type probeFunc func(ctx context.Context) error

func (f probeFunc) ProbeUploads(ctx context.Context) error { return f(ctx) }

func TestDispatcher_InvalidDraftRejected(t *testing.T) {
	t.Parallel()
	d := NewDispatcher(reactiveNegotiator(), &okProber{}, &MockSender{}, &MockSender{}, testIdentity)

	err := d.Send(context.Background(), Draft{
		Kind:       feed.KindImage, // image without attachment breaks the invariant
		Content:    "broken",
		Attachment: nil,
	})
	if err == nil {
		t.Fatal("Send() accepted a draft that violates the kind/attachment invariant")
	}
}
