package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/switchboard/internal/adapters/memory"
	"github.com/example/switchboard/internal/core/dispatch"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
)

// ============================================================================
// Mock Implementations
// ============================================================================

// mockDraftingService implements secondary.DraftingService for testing.
// errs[i] (when non-nil) fails call i; otherwise responses[i] is returned,
// falling back to the last response.
type mockDraftingService struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []secondary.CompletionRequest

	// when started is set, Complete signals it and blocks until ctx ends
	started   chan struct{}
	cancelled chan error
}

func newMockDraftingService(responses ...string) *mockDraftingService {
	return &mockDraftingService{responses: responses}
}

// holdUntilCancelled makes the next call block until its context ends.
func (m *mockDraftingService) holdUntilCancelled() {
	m.started = make(chan struct{})
	m.cancelled = make(chan error, 1)
}

func (m *mockDraftingService) Complete(ctx context.Context, req secondary.CompletionRequest) (string, error) {
	if m.started != nil {
		close(m.started)
		<-ctx.Done()
		m.cancelled <- ctx.Err()
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx := len(m.requests)
	m.requests = append(m.requests, req)
	if idx < len(m.errs) && m.errs[idx] != nil {
		return "", m.errs[idx]
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return m.responses[len(m.responses)-1], nil
}

func (m *mockDraftingService) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *mockDraftingService) lastRequest() secondary.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

type sentMessage struct {
	recipient string
	text      string
}

// mockSourceAdapter implements secondary.SourceAdapter for testing.
type mockSourceAdapter struct {
	id       string
	mu       sync.Mutex
	items    []secondary.InboundItem
	pollErr  error
	sendErrs []error // consumed one per Send call
	sent     []sentMessage
	attempts int
}

func newMockSourceAdapter(id string) *mockSourceAdapter {
	return &mockSourceAdapter{id: id}
}

func (m *mockSourceAdapter) SourceID() string { return m.id }

func (m *mockSourceAdapter) Poll(ctx context.Context) ([]secondary.InboundItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pollErr != nil {
		return nil, m.pollErr
	}
	return append([]secondary.InboundItem(nil), m.items...), nil
}

func (m *mockSourceAdapter) Send(ctx context.Context, recipientID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if len(m.sendErrs) > 0 {
		err := m.sendErrs[0]
		m.sendErrs = m.sendErrs[1:]
		if err != nil {
			return err
		}
	}
	m.sent = append(m.sent, sentMessage{recipient: recipientID, text: text})
	return nil
}

func (m *mockSourceAdapter) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// recordingNotifier implements secondary.Notifier for testing.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []secondary.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, note secondary.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func (n *recordingNotifier) count(kind string) int {
	c := 0
	for _, k := range n.kinds() {
		if k == kind {
			c++
		}
	}
	return c
}

// mockEventWriter implements secondary.EventWriter for testing.
type mockEventWriter struct {
	mu      sync.Mutex
	entries []string
	err     error
}

func (w *mockEventWriter) LogTransition(ctx context.Context, messageID, from, to, detail string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, messageID+":"+from+"->"+to)
	return w.err
}

func (w *mockEventWriter) LogEvent(ctx context.Context, messageID, action, detail string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, messageID+":"+action)
	return w.err
}

// failingMessageRepository wraps the memory store and injects errors.
type failingMessageRepository struct {
	*memory.MessageStore
	enqueueErr error
}

func (r *failingMessageRepository) Enqueue(ctx context.Context, rec *secondary.MessageRecord) (string, error) {
	if r.enqueueErr != nil {
		return "", r.enqueueErr
	}
	return r.MessageStore.Enqueue(ctx, rec)
}

// scriptedMessageRepository wraps the memory store for tests that need a
// store to pause, fail or report an outdated listing.
type scriptedMessageRepository struct {
	*memory.MessageStore

	mu       sync.Mutex
	holdNext bool
	reached  chan struct{}
	release  chan struct{}
	listed   []*secondary.MessageRecord
	finalErr error
}

func newScriptedMessageRepository(store *memory.MessageStore) *scriptedMessageRepository {
	return &scriptedMessageRepository{MessageStore: store}
}

// holdNextRead makes the next GetByID signal reached and block until release is closed.
func (r *scriptedMessageRepository) holdNextRead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.holdNext = true
	r.reached = make(chan struct{})
	r.release = make(chan struct{})
}

func (r *scriptedMessageRepository) GetByID(ctx context.Context, id string) (*secondary.MessageRecord, error) {
	r.mu.Lock()
	hold := r.holdNext
	r.holdNext = false
	reached, release := r.reached, r.release
	r.mu.Unlock()

	if hold {
		close(reached)
		<-release
	}
	return r.MessageStore.GetByID(ctx, id)
}

func (r *scriptedMessageRepository) List(ctx context.Context, filters secondary.MessageFilters) ([]*secondary.MessageRecord, error) {
	r.mu.Lock()
	listed := r.listed
	r.mu.Unlock()
	if listed != nil {
		return listed, nil
	}
	return r.MessageStore.List(ctx, filters)
}

func (r *scriptedMessageRepository) SetFinalResponse(ctx context.Context, id, text string) error {
	r.mu.Lock()
	err := r.finalErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MessageStore.SetFinalResponse(ctx, id, text)
}

// ============================================================================
// Test Harness
// ============================================================================

type testHarness struct {
	engine        *LifecycleEngine
	dispatcher    *Dispatcher
	poller        *Poller
	registry      *Registry
	messages      *memory.MessageStore
	conversations *memory.ConversationStore
	drafting      *mockDraftingService
	source        *mockSourceAdapter
	notifier      *recordingNotifier
	events        *mockEventWriter
	clock         *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errUnavailable = errors.New("backend unavailable")

type harnessOptions struct {
	// wrap replaces the message repository seen by the engine and dispatcher.
	wrap func(*memory.MessageStore) secondary.MessageRepository
	// runner starts background jobs; nil runs them synchronously.
	runner func(job func())
}

// newTestHarness wires the engine, dispatcher and poller on memory stores.
// Background jobs run synchronously so tests observe their outcome directly.
func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	return newTestHarnessWith(t, harnessOptions{})
}

func newTestHarnessWith(t *testing.T, opts harnessOptions) *testHarness {
	t.Helper()

	h := &testHarness{
		messages:      memory.NewMessageStore(),
		conversations: memory.NewConversationStore(),
		drafting:      newMockDraftingService("Sounds good, talk tomorrow."),
		source:        newMockSourceAdapter("gmail"),
		notifier:      &recordingNotifier{},
		events:        &mockEventWriter{},
		clock:         &fakeClock{now: time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)},
	}
	logger := observability.Discard()

	var repo secondary.MessageRepository = h.messages
	if opts.wrap != nil {
		repo = opts.wrap(h.messages)
	}
	runner := opts.runner
	if runner == nil {
		runner = func(job func()) { job() }
	}

	registry, err := NewRegistry(SourceDescriptor{
		SourceID:      "gmail",
		Kind:          "mock",
		CanPoll:       true,
		CanSend:       true,
		Interval:      30 * time.Second,
		ErrorInterval: 60 * time.Second,
		Adapter:       h.source,
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	h.registry = registry

	executor := NewEffectExecutor(h.notifier, h.events, logger)
	orchestrator := NewDraftingOrchestrator(repo, h.conversations, nil, h.drafting, DraftingOptions{
		Timeout:      time.Second,
		HistoryTurns: 5,
	}, logger)

	h.engine = NewLifecycleEngine(LifecycleDeps{
		Messages:      repo,
		Conversations: h.conversations,
		Drafter:       orchestrator,
		Executor:      executor,
		Logger:        logger,
		Runner:        runner,
		Now:           h.clock.Now,
	})
	h.dispatcher = NewDispatcher(repo, registry, h.engine, executor, dispatch.RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    time.Minute,
	}, time.Second, logger)
	h.dispatcher.now = h.clock.Now
	h.engine.SetSender(h.dispatcher)
	h.poller = NewPoller(registry, h.engine, time.Second, logger)

	t.Cleanup(h.engine.Close)
	return h
}

// enqueue adds an inbound message received at the harness clock plus offset.
func (h *testHarness) enqueue(t *testing.T, externalID string, offset time.Duration) string {
	t.Helper()
	id, err := h.engine.Enqueue(context.Background(), "gmail", secondary.InboundItem{
		ExternalID: externalID,
		SenderID:   "alice",
		Body:       "Hey! Are you free for a quick call tomorrow? (" + externalID + ")",
		ReceivedAt: h.clock.Now().Add(offset),
	})
	if err != nil {
		t.Fatalf("Enqueue(%s) failed: %v", externalID, err)
	}
	return id
}

func (h *testHarness) state(t *testing.T, id string) string {
	t.Helper()
	rec, err := h.messages.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) failed: %v", id, err)
	}
	return rec.State
}

func secondaryActiveFilter() secondary.MessageFilters {
	var states []string
	for _, s := range message.ActiveStates() {
		states = append(states, string(s))
	}
	return secondary.MessageFilters{States: states}
}

func draftRecord(text string) secondary.DraftRecord {
	return secondary.DraftRecord{ID: "DRAFT-test", Text: text, Origin: secondary.DraftOriginManual}
}
