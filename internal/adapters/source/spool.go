package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/switchboard/internal/ports/secondary"
)

// SpoolMessage is the on-disk form of an inbound message in the inbox.
type SpoolMessage struct {
	ID         string    `yaml:"id"`
	SenderID   string    `yaml:"sender_id"`
	Body       string    `yaml:"body"`
	ReceivedAt time.Time `yaml:"received_at,omitempty"`
}

// SpoolReply is the on-disk form of a sent reply in the outbox.
type SpoolReply struct {
	RecipientID string    `yaml:"recipient_id"`
	Text        string    `yaml:"text"`
	SentAt      time.Time `yaml:"sent_at"`
}

// Spool is a SourceAdapter backed by two directories: every *.yaml file in
// the inbox is an inbound message, and every send writes a file to the outbox.
// Inbox files are left in place; the store deduplicates re-reported ids.
type Spool struct {
	id     string
	inbox  string
	outbox string
	now    func() time.Time
}

// NewSpool creates a spool source, creating both directories if needed.
func NewSpool(id, inbox, outbox string) (*Spool, error) {
	for _, dir := range []string{inbox, outbox} {
		if dir == "" {
			return nil, fmt.Errorf("spool source %q needs inbox and outbox directories", id)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create spool directory: %w", err)
		}
	}
	return &Spool{id: id, inbox: inbox, outbox: outbox, now: time.Now}, nil
}

// SourceID implements secondary.SourceAdapter.
func (s *Spool) SourceID() string { return s.id }

// Poll reads every message in the inbox, oldest file name first.
func (s *Spool) Poll(ctx context.Context) ([]secondary.InboundItem, error) {
	paths, err := filepath.Glob(filepath.Join(s.inbox, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox: %w", err)
	}
	sort.Strings(paths)

	var items []secondary.InboundItem
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		var msg SpoolMessage
		if err := yaml.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if msg.ID == "" {
			msg.ID = strings.TrimSuffix(filepath.Base(path), ".yaml")
		}
		if msg.ReceivedAt.IsZero() {
			if info, err := os.Stat(path); err == nil {
				msg.ReceivedAt = info.ModTime()
			}
		}
		items = append(items, secondary.InboundItem{
			ExternalID: msg.ID,
			SenderID:   msg.SenderID,
			Body:       msg.Body,
			ReceivedAt: msg.ReceivedAt,
		})
	}
	return items, nil
}

// Send writes the reply to the outbox.
func (s *Spool) Send(ctx context.Context, recipientID, text string) error {
	if recipientID == "" {
		return &secondary.PermanentError{Err: fmt.Errorf("reply has no recipient")}
	}
	now := s.now()
	data, err := yaml.Marshal(SpoolReply{RecipientID: recipientID, Text: text, SentAt: now})
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	name := fmt.Sprintf("%d-%s.yaml", now.UnixNano(), sanitize(recipientID))
	tmp := filepath.Join(s.outbox, "."+name)
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write reply: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.outbox, name)); err != nil {
		return fmt.Errorf("failed to publish reply: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}

var _ secondary.SourceAdapter = (*Spool)(nil)
