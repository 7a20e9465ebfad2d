package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/switchboard/internal/adapters/memory"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/observability"
	"github.com/example/switchboard/internal/ports/secondary"
)

type stubProfiles map[string]*secondary.ProfileRecord

func (s stubProfiles) Get(ctx context.Context, senderID string) (*secondary.ProfileRecord, error) {
	return s[senderID], nil
}

// blockingDraftingService waits for the call to be cancelled.
type blockingDraftingService struct{}

func (blockingDraftingService) Complete(ctx context.Context, req secondary.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func setupOrchestrator(t *testing.T, service secondary.DraftingService, profiles secondary.ProfileRepository) (*DraftingOrchestrator, *memory.MessageStore, *memory.ConversationStore, *secondary.MessageRecord) {
	t.Helper()
	ctx := context.Background()
	messages := memory.NewMessageStore()
	conversations := memory.NewConversationStore()

	id, err := messages.Enqueue(ctx, &secondary.MessageRecord{
		SourceID:   "telegram",
		ExternalID: "t-1",
		SenderID:   "bob",
		Body:       "Did you see the match?",
		ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	rec, _ := messages.GetByID(ctx, id)

	o := NewDraftingOrchestrator(messages, conversations, profiles, service, DraftingOptions{
		Timeout:      50 * time.Millisecond,
		HistoryTurns: 2,
		MaxLength:    120,
	}, observability.Discard())
	return o, messages, conversations, rec
}

func TestDraft_StoresNormalizedDraft(t *testing.T) {
	svc := newMockDraftingService(`  "Yes! What a finish."  `)
	o, messages, _, rec := setupOrchestrator(t, svc, nil)
	ctx := context.Background()

	d, err := o.Draft(ctx, rec, rec.StateVersion, "")
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if d.Text != "Yes! What a finish." {
		t.Errorf("text = %q", d.Text)
	}
	if !strings.HasPrefix(d.ID, "DRAFT-") || d.Origin != secondary.DraftOriginAI {
		t.Errorf("draft = %+v", d)
	}

	stored, _ := messages.GetByID(ctx, rec.ID)
	if len(stored.Drafts) != 1 || stored.FinalResponse != "" {
		t.Errorf("stored drafts = %d, final = %q; want 1 draft and no final response", len(stored.Drafts), stored.FinalResponse)
	}
	if svc.lastRequest().MaxLength != 120 {
		t.Errorf("MaxLength = %d, want 120", svc.lastRequest().MaxLength)
	}
}

func TestDraft_PromptCarriesHistoryAndProfile(t *testing.T) {
	svc := newMockDraftingService("Sure.")
	profiles := stubProfiles{"bob": {SenderID: "bob", DisplayName: "Bob", Relationship: "college friend"}}
	o, _, conversations, rec := setupOrchestrator(t, svc, profiles)
	ctx := context.Background()

	for i, pair := range [][2]string{{"first", "one"}, {"second", "two"}, {"third", "three"}} {
		conversations.Append(ctx, &secondary.TurnRecord{
			MessageID: "MSG-OLD-" + pair[0],
			SourceID:  "telegram",
			SenderID:  "bob",
			Inbound:   pair[0],
			Response:  pair[1],
			SentAt:    time.Now().Add(time.Duration(i) * time.Minute),
		})
	}

	if _, err := o.Draft(ctx, rec, rec.StateVersion, ""); err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	req := svc.lastRequest()

	if strings.Contains(req.User, "bob: first") {
		t.Error("history should be limited to the two most recent turns")
	}
	for _, want := range []string{"bob: second", "me: three", "New message from bob:\nDid you see the match?"} {
		if !strings.Contains(req.User, want) {
			t.Errorf("user prompt missing %q:\n%s", want, req.User)
		}
	}
	for _, want := range []string{"About the sender (Bob)", "college friend", "conversational and friendly"} {
		if !strings.Contains(req.System, want) {
			t.Errorf("system prompt missing %q:\n%s", want, req.System)
		}
	}
}

func TestDraft_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		service secondary.DraftingService
		want    message.DraftingKind
	}{
		{
			name:    "timeout",
			service: blockingDraftingService{},
			want:    message.DraftingTimeout,
		},
		{
			name:    "backend failure",
			service: &mockDraftingService{errs: []error{errUnavailable}},
			want:    message.DraftingUnavailable,
		},
		{
			name:    "quota passes through",
			service: &mockDraftingService{errs: []error{&message.DraftingError{Kind: message.DraftingQuota, Err: errors.New("429")}}},
			want:    message.DraftingQuota,
		},
		{
			name:    "blank response",
			service: newMockDraftingService("   \"\"  "),
			want:    message.DraftingInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, messages, _, rec := setupOrchestrator(t, tt.service, nil)

			_, err := o.Draft(context.Background(), rec, rec.StateVersion, "")
			var de *message.DraftingError
			if !errors.As(err, &de) {
				t.Fatalf("expected DraftingError, got %v", err)
			}
			if de.Kind != tt.want {
				t.Errorf("kind = %s, want %s", de.Kind, tt.want)
			}

			stored, _ := messages.GetByID(context.Background(), rec.ID)
			if len(stored.Drafts) != 0 {
				t.Errorf("drafts = %d, want none after failure", len(stored.Drafts))
			}
		})
	}
}

func TestDraft_StaleVersionRejected(t *testing.T) {
	svc := newMockDraftingService("Sure.")
	o, messages, _, rec := setupOrchestrator(t, svc, nil)
	ctx := context.Background()

	if _, err := messages.SetState(ctx, rec.ID, rec.State, rec.StateVersion, string(message.StateAwaitingDecision)); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	_, err := o.Draft(ctx, rec, rec.StateVersion, "")
	if !message.IsStale(err) {
		t.Errorf("expected stale error, got %v", err)
	}
}
