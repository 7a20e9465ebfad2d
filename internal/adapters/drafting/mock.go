// Package drafting contains the drafting services replies are generated with.
package drafting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/example/switchboard/internal/ports/secondary"
)

// MockService produces canned replies without calling a model.
// Useful for local runs and demos.
type MockService struct {
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

// NewMockService creates a MockService.
func NewMockService(delay time.Duration) *MockService {
	return &MockService{Delay: delay}
}

// Complete implements secondary.DraftingService.
func (m *MockService) Complete(ctx context.Context, req secondary.CompletionRequest) (string, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if note, ok := section(req.User, "Revision note:"); ok {
		current, _ := section(req.User, "Current draft:")
		return fmt.Sprintf("%s (revised: %s)", current, note), nil
	}

	body, _ := section(req.User, "New message from")
	lower := strings.ToLower(body)
	switch {
	case strings.Contains(lower, "?"):
		return "Thanks for reaching out! Good question, let me get back to you with details shortly.", nil
	case strings.Contains(lower, "thank"):
		return "You're very welcome, happy I could help!", nil
	default:
		return "Thanks for your message! I'll follow up soon.", nil
	}
}

// Calls returns the number of completed requests.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// section returns the first line after the line starting with header.
func section(text, header string) (string, bool) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, header) && i+1 < len(lines) {
			return strings.TrimSpace(lines[i+1]), true
		}
	}
	return "", false
}

var _ secondary.DraftingService = (*MockService)(nil)
