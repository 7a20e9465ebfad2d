package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/switchboard/internal/adapters/memory"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/primary"
	"github.com/example/switchboard/internal/ports/secondary"
)

func TestPollOnce_DedupOnRepoll(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.source.items = []secondary.InboundItem{
		{ExternalID: "a", SenderID: "alice", Body: "hi", ReceivedAt: h.clock.Now()},
		{ExternalID: "b", SenderID: "bob", Body: "yo", ReceivedAt: h.clock.Now()},
	}

	first, err := h.poller.PollOnce(ctx, "gmail")
	if err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if len(first.Enqueued) != 2 || first.Duplicates != 0 {
		t.Errorf("first poll = %+v, want 2 enqueued", first)
	}

	second, err := h.poller.PollOnce(ctx, "gmail")
	if err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if len(second.Enqueued) != 0 || second.Duplicates != 2 {
		t.Errorf("second poll = %+v, want 2 duplicates", second)
	}

	all, _ := h.messages.List(ctx, secondary.MessageFilters{})
	if len(all) != 2 {
		t.Errorf("stored = %d, want 2", len(all))
	}
	if h.notifier.count("new_message") != 2 {
		t.Errorf("new_message notifications = %d, want 2", h.notifier.count("new_message"))
	}
}

func TestPollOnce_DuplicateOfTerminalMessage(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()
	h.source.items = []secondary.InboundItem{{ExternalID: "a", SenderID: "alice", Body: "hi"}}

	h.poller.PollOnce(ctx, "gmail")
	h.engine.ActivateNext(ctx)
	h.engine.Decide(ctx, primary.DecideRequest{Action: primary.DecisionIgnore})

	res, err := h.poller.PollOnce(ctx, "gmail")
	if err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if res.Duplicates != 1 || len(res.Enqueued) != 0 {
		t.Errorf("poll = %+v, want the ignored message treated as duplicate", res)
	}
}

func TestPollOnce_Errors(t *testing.T) {
	h := newTestHarness(t)
	ctx := context.Background()

	if _, err := h.poller.PollOnce(ctx, "telegram"); err == nil {
		t.Error("expected error for unknown source")
	}

	h.source.pollErr = errors.New("connection reset")
	_, err := h.poller.PollOnce(ctx, "gmail")
	var srcErr *sourceError
	if !errors.As(err, &srcErr) {
		t.Errorf("expected sourceError, got %v", err)
	}
}

func TestPollOnce_StoreFailure(t *testing.T) {
	h := newTestHarness(t)
	h.source.items = []secondary.InboundItem{{ExternalID: "a", SenderID: "alice", Body: "hi"}}

	repo := &failingMessageRepository{MessageStore: memory.NewMessageStore(), enqueueErr: errors.New("disk full")}
	engine := NewLifecycleEngine(LifecycleDeps{Messages: repo, Logger: observability.Discard()})
	poller := NewPoller(h.registry, engine, time.Second, observability.Discard())

	_, err := poller.PollOnce(context.Background(), "gmail")
	var srcErr *sourceError
	if err == nil || errors.As(err, &srcErr) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	h := newTestHarness(t)
	h.source.items = []secondary.InboundItem{{ExternalID: "a", SenderID: "alice", Body: "hi"}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.poller.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		all, _ := h.messages.List(context.Background(), secondary.MessageFilters{})
		if len(all) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller never enqueued the message")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_StoreFailureStopsLoops(t *testing.T) {
	h := newTestHarness(t)
	h.source.items = []secondary.InboundItem{{ExternalID: "a", SenderID: "alice", Body: "hi"}}

	repo := &failingMessageRepository{MessageStore: memory.NewMessageStore(), enqueueErr: errors.New("disk full")}
	engine := NewLifecycleEngine(LifecycleDeps{Messages: repo, Logger: observability.Discard()})
	poller := NewPoller(h.registry, engine, time.Second, observability.Discard())

	done := make(chan error, 1)
	go func() { done <- poller.Run(context.Background()) }()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Run returned nil, want the store error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept going after a store failure")
	}
}

func TestRegistry(t *testing.T) {
	a := newMockSourceAdapter("gmail")
	b := newMockSourceAdapter("telegram")

	r, err := NewRegistry(
		SourceDescriptor{SourceID: "gmail", CanPoll: true, CanSend: true, Interval: time.Second, Adapter: a},
		SourceDescriptor{SourceID: "telegram", CanPoll: false, CanSend: true, Adapter: b},
	)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if got := len(r.Pollable()); got != 1 {
		t.Errorf("Pollable = %d, want 1", got)
	}
	if d, _ := r.Get("gmail"); d.ErrorInterval != 2*time.Second {
		t.Errorf("default ErrorInterval = %v, want 2s", d.ErrorInterval)
	}
	if _, err := r.Sender("telegram"); err != nil {
		t.Errorf("Sender(telegram) failed: %v", err)
	}
	if _, err := r.Sender("sms"); err == nil {
		t.Error("Sender(sms) expected error")
	}

	tests := []struct {
		name  string
		descs []SourceDescriptor
	}{
		{"duplicate id", []SourceDescriptor{
			{SourceID: "gmail", Adapter: a},
			{SourceID: "gmail", Adapter: a},
		}},
		{"mismatched adapter id", []SourceDescriptor{{SourceID: "linkedin", Adapter: a}}},
		{"missing adapter", []SourceDescriptor{{SourceID: "gmail"}}},
		{"pollable without interval", []SourceDescriptor{{SourceID: "gmail", CanPoll: true, Adapter: a}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry(tt.descs...); err == nil {
				t.Error("expected error")
			}
		})
	}
}
