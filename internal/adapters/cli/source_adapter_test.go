package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/switchboard/internal/ports/primary"
)

// mockPollerService implements primary.PollerService for testing
type mockPollerService struct {
	sources []primary.SourceInfo
	results map[string]*primary.PollResult
	polled  []string
}

func (m *mockPollerService) PollOnce(ctx context.Context, sourceID string) (*primary.PollResult, error) {
	m.polled = append(m.polled, sourceID)
	if r, ok := m.results[sourceID]; ok {
		return r, nil
	}
	return nil, errors.New("source unavailable")
}

func (m *mockPollerService) Run(ctx context.Context) error { return nil }

func (m *mockPollerService) Sources() []primary.SourceInfo { return m.sources }

func newMockPoller() *mockPollerService {
	return &mockPollerService{
		sources: []primary.SourceInfo{
			{SourceID: "gmail", Kind: "simulated", CanPoll: true, CanSend: true, Interval: 30 * time.Second, ErrorInterval: time.Minute},
			{SourceID: "outbox", Kind: "spool", CanSend: true},
			{SourceID: "telegram", Kind: "simulated", CanPoll: true, CanSend: true, Interval: 30 * time.Second, ErrorInterval: time.Minute},
		},
		results: map[string]*primary.PollResult{
			"gmail": {SourceID: "gmail", Fetched: 2, Enqueued: []string{"MSG-0001"}, Duplicates: 1},
		},
	}
}

func TestSourceAdapter_List(t *testing.T) {
	var buf bytes.Buffer
	NewSourceAdapter(newMockPoller(), &buf).List()

	output := buf.String()
	if !strings.Contains(output, "30s (1m0s after error)") {
		t.Errorf("expected intervals, got:\n%s", output)
	}
	if !strings.Contains(output, "outbox") {
		t.Errorf("expected send-only source listed, got:\n%s", output)
	}
}

func TestSourceAdapter_PollOne(t *testing.T) {
	mock := newMockPoller()
	var buf bytes.Buffer

	if err := NewSourceAdapter(mock, &buf).Poll(context.Background(), "gmail"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(buf.String(), "fetched 2, enqueued 1, duplicates 1") || !strings.Contains(buf.String(), "+ MSG-0001") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestSourceAdapter_PollAllSkipsSendOnlyAndReportsFailures(t *testing.T) {
	mock := newMockPoller()
	var buf bytes.Buffer

	err := NewSourceAdapter(mock, &buf).Poll(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "telegram") {
		t.Errorf("expected telegram failure reported, got %v", err)
	}
	if len(mock.polled) != 2 {
		t.Errorf("expected 2 pollable sources polled, got %v", mock.polled)
	}
	if !strings.Contains(buf.String(), "✓ gmail") {
		t.Errorf("expected gmail to succeed despite telegram failing:\n%s", buf.String())
	}
}
