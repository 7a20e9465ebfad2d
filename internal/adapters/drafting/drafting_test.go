package drafting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/example/switchboard/internal/core/draft"
	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

func TestMockService_Complete(t *testing.T) {
	m := NewMockService(0)
	ctx := context.Background()

	tests := []struct {
		name  string
		input draft.PromptInput
		want  string
	}{
		{
			name:  "question",
			input: draft.PromptInput{SourceID: "telegram", SenderID: "alice", Body: "Free for a call tomorrow?"},
			want:  "Good question",
		},
		{
			name:  "thanks",
			input: draft.PromptInput{SourceID: "telegram", SenderID: "bob", Body: "Thanks for the help with the project!"},
			want:  "welcome",
		},
		{
			name: "revision",
			input: draft.PromptInput{
				SourceID: "telegram", SenderID: "bob", Body: "hi",
				PreviousDraft: "Hello there.", Feedback: "shorter",
			},
			want: "Hello there. (revised: shorter)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := draft.BuildPrompt(tt.input)
			got, err := m.Complete(ctx, secondary.CompletionRequest{System: p.System, User: p.User})
			if err != nil {
				t.Fatalf("Complete failed: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Complete() = %q, want it to contain %q", got, tt.want)
			}
		})
	}
	if m.Calls() != len(tests) {
		t.Errorf("Calls() = %d, want %d", m.Calls(), len(tests))
	}
}

func TestMockService_HonoursDeadline(t *testing.T) {
	m := NewMockService(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.Complete(ctx, secondary.CompletionRequest{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

type fakeGenerator struct {
	res  *genai.GenerateContentResponse
	err  error
	got  []*genai.Content
	cfg  *genai.GenerateContentConfig
	name string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.name = model
	f.got = contents
	f.cfg = config
	return f.res, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func TestGeminiService_Complete(t *testing.T) {
	fake := &fakeGenerator{res: textResponse("Sounds great!")}
	g := &GeminiService{models: fake, model: DefaultGeminiModel}

	got, err := g.Complete(context.Background(), secondary.CompletionRequest{System: "sys", User: "user", MaxLength: 200})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Sounds great!" {
		t.Errorf("Complete() = %q", got)
	}
	if fake.name != DefaultGeminiModel || len(fake.got) != 1 {
		t.Errorf("unexpected call: model %s, %d contents", fake.name, len(fake.got))
	}
	if fake.cfg.SystemInstruction == nil || fake.cfg.MaxOutputTokens == 0 {
		t.Errorf("config not populated: %+v", fake.cfg)
	}
}

func TestGeminiService_Errors(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeGenerator
		wantKind message.DraftingKind
		wantCtx  bool
	}{
		{name: "quota", fake: &fakeGenerator{err: errors.New("Error 429, Message: quota, Status: RESOURCE_EXHAUSTED")}, wantKind: message.DraftingQuota},
		{name: "unavailable", fake: &fakeGenerator{err: errors.New("connection refused")}, wantKind: message.DraftingUnavailable},
		{name: "empty", fake: &fakeGenerator{res: textResponse("  ")}, wantKind: message.DraftingInvalidResponse},
		{name: "deadline", fake: &fakeGenerator{err: context.DeadlineExceeded}, wantCtx: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &GeminiService{models: tt.fake, model: "m"}
			_, err := g.Complete(context.Background(), secondary.CompletionRequest{User: "u"})
			if tt.wantCtx {
				if !errors.Is(err, context.DeadlineExceeded) {
					t.Errorf("expected deadline error, got %v", err)
				}
				return
			}
			var de *message.DraftingError
			if !errors.As(err, &de) {
				t.Fatalf("expected DraftingError, got %v", err)
			}
			if de.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", de.Kind, tt.wantKind)
			}
		})
	}
}

func TestNewGeminiService_NeedsCredentials(t *testing.T) {
	if _, err := NewGeminiService(context.Background(), GeminiOptions{}); err == nil {
		t.Error("expected error without credentials")
	}
}
