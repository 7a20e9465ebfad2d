package primary

import (
	"context"
	"time"
)

// DispatchService defines the primary port for outbound delivery.
type DispatchService interface {
	// Send delivers the final response of a message in sending.
	// Calling it on a sent message returns the prior result without resending.
	Send(ctx context.Context, messageID string) (*SendResult, error)

	// ProcessDue re-attempts every sending message whose retry is due at now.
	ProcessDue(ctx context.Context, now time.Time) ([]*SendResult, error)
}

// SendResult describes the outcome of a send request.
type SendResult struct {
	MessageID     string
	Status        string // sent, retrying, failed, in_progress
	Attempts      int
	SentAt        time.Time
	NextAttemptAt time.Time
	Error         string
}

// PollerService defines the primary port for source polling.
type PollerService interface {
	// PollOnce polls a single source and enqueues what it reports.
	PollOnce(ctx context.Context, sourceID string) (*PollResult, error)

	// Run polls every pollable source at its own interval until ctx is done.
	Run(ctx context.Context) error

	// Sources lists the registered sources.
	Sources() []SourceInfo
}

// PollResult summarizes one poll of one source.
type PollResult struct {
	SourceID   string
	Fetched    int
	Enqueued   []string
	Duplicates int
}

// SourceInfo describes a registered source.
type SourceInfo struct {
	SourceID      string
	Kind          string
	CanPoll       bool
	CanSend       bool
	Interval      time.Duration
	ErrorInterval time.Duration
}
