// Package source contains the platform adapters messages are polled from
// and replies are sent through.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/example/switchboard/internal/ports/secondary"
)

// Canned is one message a simulated platform can report.
type Canned struct {
	SenderID string
	Body     string
}

// Preset describes a simulated platform.
type Preset struct {
	Probability float64 // chance that a poll reports a message
	Messages    []Canned
}

// Presets are the built-in simulated platforms.
var Presets = map[string]Preset{
	"linkedin": {
		Probability: 0.3,
		Messages: []Canned{
			{"john.doe", "Hi! I saw your profile and would love to connect. Are you open to discussing potential collaboration opportunities?"},
			{"jane.smith", "Thanks for accepting my connection request! I'm interested in learning more about your work in AI."},
		},
	},
	"gmail": {
		Probability: 0.2,
		Messages: []Canned{
			{"client@example.com", "Hello, I'm interested in your services. Could you please provide more information about your pricing?"},
			{"colleague@company.com", "Hi! Can you review the latest project proposal when you have a chance?"},
		},
	},
	"telegram": {
		Probability: 0.4,
		Messages: []Canned{
			{"alice", "Hey! Are you free for a quick call tomorrow?"},
			{"bob", "Thanks for the help with the project!"},
		},
	},
	"facebook": {
		Probability: 0.25,
		Messages: []Canned{
			{"friend1", "Happy birthday! Hope you have a great day!"},
			{"friend2", "Are you going to the event this weekend?"},
		},
	},
	"instagram": {
		Probability: 0.35,
		Messages: []Canned{
			{"follower1", "Love your latest post! 🔥"},
			{"follower2", "Can you share the recipe for that dish?"},
		},
	},
}

// SimulatedOptions configures a simulated source.
type SimulatedOptions struct {
	Seed            uint64
	Probability     float64       // overrides the preset when > 0
	Slot            time.Duration // window within which a re-reported message deduplicates
	SendFailureRate float64       // chance that Send fails with a retryable error
}

// SentMessage records a reply handed to a simulated source.
type SentMessage struct {
	RecipientID string
	Text        string
	At          time.Time
}

// ErrSimulatedSendFailure is returned when a simulated send is made to fail.
var ErrSimulatedSendFailure = errors.New("simulated delivery failure")

// Simulated is a SourceAdapter that invents inbound traffic from a preset.
type Simulated struct {
	id     string
	preset Preset
	opts   SimulatedOptions
	now    func() time.Time

	mu   sync.Mutex
	rng  *rand.Rand
	sent []SentMessage
}

// NewSimulated creates a simulated source. id must name a preset.
func NewSimulated(id string, opts SimulatedOptions) (*Simulated, error) {
	preset, ok := Presets[id]
	if !ok {
		return nil, fmt.Errorf("no simulated preset for source %q", id)
	}
	if opts.Probability > 0 {
		preset.Probability = opts.Probability
	}
	if opts.Slot <= 0 {
		opts.Slot = time.Minute
	}
	if opts.Seed == 0 {
		opts.Seed = uint64(time.Now().UnixNano())
	}
	return &Simulated{
		id:     id,
		preset: preset,
		opts:   opts,
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}, nil
}

// SourceID implements secondary.SourceAdapter.
func (s *Simulated) SourceID() string { return s.id }

// Poll reports at most one message, with the preset's probability.
func (s *Simulated) Poll(ctx context.Context) ([]secondary.InboundItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.preset.Messages) == 0 || s.rng.Float64() >= s.preset.Probability {
		return nil, nil
	}
	msg := s.preset.Messages[s.rng.IntN(len(s.preset.Messages))]
	now := s.now()
	return []secondary.InboundItem{{
		ExternalID: s.externalID(msg, now),
		SenderID:   msg.SenderID,
		Body:       msg.Body,
		ReceivedAt: now,
	}}, nil
}

// Send records the reply. It fails with ErrSimulatedSendFailure at the
// configured rate.
func (s *Simulated) Send(ctx context.Context, recipientID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.SendFailureRate > 0 && s.rng.Float64() < s.opts.SendFailureRate {
		return ErrSimulatedSendFailure
	}
	s.sent = append(s.sent, SentMessage{RecipientID: recipientID, Text: text, At: s.now()})
	return nil
}

// Sent returns the replies delivered so far.
func (s *Simulated) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// externalID hashes the content with the time slot, so the same message
// reported twice within one slot deduplicates.
func (s *Simulated) externalID(msg Canned, at time.Time) string {
	h := sha256.New()
	h.Write([]byte(s.id))
	h.Write([]byte(msg.SenderID))
	h.Write([]byte(msg.Body))
	h.Write([]byte(at.Truncate(s.opts.Slot).UTC().Format(time.RFC3339)))
	return hex.EncodeToString(h.Sum(nil))[:16]
}

var _ secondary.SourceAdapter = (*Simulated)(nil)
