package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/example/switchboard/internal/core/message"
	"github.com/example/switchboard/internal/ports/secondary"
)

// GeminiOptions configures the Gemini drafting service.
type GeminiOptions struct {
	APIKey   string // Gemini API backend when set
	Project  string // Vertex AI backend when APIKey is empty
	Location string
	Model    string
}

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiService implements secondary.DraftingService with Gemini.
type GeminiService struct {
	models contentGenerator
	model  string
}

// NewGeminiService creates a Gemini client for the configured backend.
func NewGeminiService(ctx context.Context, opts GeminiOptions) (*GeminiService, error) {
	cfg := &genai.ClientConfig{}
	switch {
	case opts.APIKey != "":
		cfg.APIKey = opts.APIKey
		cfg.Backend = genai.BackendGeminiAPI
	case opts.Project != "" && opts.Location != "":
		cfg.Project = opts.Project
		cfg.Location = opts.Location
		cfg.Backend = genai.BackendVertexAI
	default:
		return nil, fmt.Errorf("gemini drafting needs an API key or a project and location")
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiService{models: client.Models, model: model}, nil
}

// Complete implements secondary.DraftingService.
func (g *GeminiService) Complete(ctx context.Context, req secondary.CompletionRequest) (string, error) {
	temp := float32(0.7)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       &temp,
	}
	if req.MaxLength > 0 {
		// roughly four characters per token, with headroom for the cut in Normalize
		cfg.MaxOutputTokens = int32(req.MaxLength/2 + 64)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.User, genai.RoleUser)}
	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}

	text := res.Text()
	if strings.TrimSpace(text) == "" {
		return "", &message.DraftingError{Kind: message.DraftingInvalidResponse, Err: errors.New("gemini returned empty text")}
	}
	return text, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") {
		return &message.DraftingError{Kind: message.DraftingQuota, Err: err}
	}
	return &message.DraftingError{Kind: message.DraftingUnavailable, Err: fmt.Errorf("gemini generate content: %w", err)}
}

var _ secondary.DraftingService = (*GeminiService)(nil)
