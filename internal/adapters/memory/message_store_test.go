package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

func enqueue(t *testing.T, s *MessageStore, source, ext string, at time.Time) string {
	t.Helper()
	id, err := s.Enqueue(context.Background(), &secondary.MessageRecord{
		SourceID:   source,
		ExternalID: ext,
		SenderID:   "alice",
		Body:       "hello " + ext,
		ReceivedAt: at,
	})
	if err != nil {
		t.Fatalf("Enqueue(%s/%s) failed: %v", source, ext, err)
	}
	return id
}

func TestMessageStore_EnqueueAssignsIDAndState(t *testing.T) {
	s := NewMessageStore()
	id := enqueue(t, s, "gmail", "x1", time.Now())

	if id != "MSG-0001" {
		t.Errorf("id = %q, want MSG-0001", id)
	}
	rec, err := s.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if rec.State != "queued" || rec.StateVersion != 0 {
		t.Errorf("state = %s v%d, want queued v0", rec.State, rec.StateVersion)
	}
}

func TestMessageStore_Duplicate(t *testing.T) {
	s := NewMessageStore()
	first := enqueue(t, s, "gmail", "x1", time.Now())

	_, err := s.Enqueue(context.Background(), &secondary.MessageRecord{SourceID: "gmail", ExternalID: "x1"})
	var dup *message.DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.ExistingID != first {
		t.Errorf("ExistingID = %q, want %q", dup.ExistingID, first)
	}

	// same external ID on another source is a different message
	enqueue(t, s, "telegram", "x1", time.Now())
}

func TestMessageStore_NextPendingFIFO(t *testing.T) {
	s := NewMessageStore()
	base := time.Date(2026, 1, 20, 12, 0, 0, 0, time.UTC)

	late := enqueue(t, s, "gmail", "late", base.Add(time.Minute))
	tieA := enqueue(t, s, "gmail", "tie-a", base)
	tieB := enqueue(t, s, "gmail", "tie-b", base)

	ctx := context.Background()
	for _, want := range []string{tieA, tieB, late} {
		next, err := s.NextPending(ctx)
		if err != nil {
			t.Fatalf("NextPending failed: %v", err)
		}
		if next == nil || next.ID != want {
			t.Fatalf("NextPending = %v, want %s", next, want)
		}
		if _, err := s.SetState(ctx, next.ID, "queued", next.StateVersion, "awaiting_decision"); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}
		if _, err := s.SetState(ctx, next.ID, "awaiting_decision", next.StateVersion+1, "ignored"); err != nil {
			t.Fatalf("SetState failed: %v", err)
		}
	}

	next, _ := s.NextPending(ctx)
	if next != nil {
		t.Errorf("NextPending = %s, want nil on empty queue", next.ID)
	}
}

func TestMessageStore_SetStateCheckAndSet(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	id := enqueue(t, s, "gmail", "x1", time.Now())

	v, err := s.SetState(ctx, id, "queued", 0, "awaiting_decision")
	if err != nil || v != 1 {
		t.Fatalf("SetState = (%d, %v), want (1, nil)", v, err)
	}

	// stale writer loses
	if _, err := s.SetState(ctx, id, "awaiting_decision", 0, "drafting"); !message.IsStale(err) {
		t.Errorf("expected stale error, got %v", err)
	}
	// not in table
	if _, err := s.SetState(ctx, id, "awaiting_decision", 1, "sent"); err == nil {
		t.Error("expected error for transition not in table")
	}
	if _, err := s.SetState(ctx, "MSG-9999", "queued", 0, "awaiting_decision"); message.KindOf(err) != message.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestMessageStore_ConcurrentSetStateSingleWinner(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	id := enqueue(t, s, "gmail", "x1", time.Now())

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.SetState(ctx, id, "queued", 0, "awaiting_decision"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
}

func TestMessageStore_AppendDraftVersionGuard(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	id := enqueue(t, s, "gmail", "x1", time.Now())

	if err := s.AppendDraft(ctx, id, 0, secondary.DraftRecord{ID: "DRAFT-1", Text: "hi"}); err != nil {
		t.Fatalf("AppendDraft failed: %v", err)
	}
	if err := s.AppendDraft(ctx, id, 3, secondary.DraftRecord{ID: "DRAFT-2", Text: "late"}); !message.IsStale(err) {
		t.Errorf("expected stale error, got %v", err)
	}

	rec, _ := s.GetByID(ctx, id)
	if len(rec.Drafts) != 1 || rec.LatestDraft().Text != "hi" {
		t.Errorf("drafts = %+v, want one draft \"hi\"", rec.Drafts)
	}
}

func TestMessageStore_FinalResponseOnlyInReview(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	id := enqueue(t, s, "gmail", "x1", time.Now())

	if err := s.SetFinalResponse(ctx, id, "early"); err == nil {
		t.Error("SetFinalResponse on a queued message should fail")
	}

	s.SetState(ctx, id, "queued", 0, "awaiting_decision")
	s.SetState(ctx, id, "awaiting_decision", 1, "manual_draft")
	s.SetState(ctx, id, "manual_draft", 2, "reviewing")
	if err := s.SetFinalResponse(ctx, id, "ok"); err != nil {
		t.Fatalf("SetFinalResponse failed: %v", err)
	}

	s.SetState(ctx, id, "reviewing", 3, "sending")
	if err := s.SetFinalResponse(ctx, id, "changed"); err == nil {
		t.Error("SetFinalResponse after review should fail")
	}
	if rec, _ := s.GetByID(ctx, id); rec.FinalResponse != "ok" {
		t.Errorf("FinalResponse = %q, want \"ok\"", rec.FinalResponse)
	}
}

func TestMessageStore_FindActive(t *testing.T) {
	s := NewMessageStore()
	ctx := context.Background()
	enqueue(t, s, "gmail", "x1", time.Now())
	id2 := enqueue(t, s, "gmail", "x2", time.Now())

	if active, _ := s.FindActive(ctx); active != nil {
		t.Fatalf("FindActive = %s, want nil", active.ID)
	}
	if _, err := s.SetState(ctx, id2, "queued", 0, "awaiting_decision"); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	active, _ := s.FindActive(ctx)
	if active == nil || active.ID != id2 {
		t.Errorf("FindActive = %v, want %s", active, id2)
	}
}

func TestConversationStore_AppendOncePerMessage(t *testing.T) {
	s := NewConversationStore()
	ctx := context.Background()

	turn := &secondary.TurnRecord{MessageID: "MSG-0001", SourceID: "gmail", SenderID: "alice", Inbound: "hi", Response: "hello"}
	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, turn); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	s.Append(ctx, &secondary.TurnRecord{MessageID: "MSG-0002", SourceID: "gmail", SenderID: "alice", Inbound: "again", Response: "yes"})

	turns, _ := s.Recent(ctx, "gmail", "alice", 10)
	if len(turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(turns))
	}
	last, _ := s.Recent(ctx, "gmail", "alice", 1)
	if len(last) != 1 || last[0].MessageID != "MSG-0002" {
		t.Errorf("Recent(limit 1) = %+v, want MSG-0002", last)
	}
}
