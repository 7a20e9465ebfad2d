package app

import (
	"fmt"
	"time"

	"github.com/example/switchboard/internal/ports/primary"
	"github.com/example/switchboard/internal/ports/secondary"
)

// SourceDescriptor describes one registered source.
type SourceDescriptor struct {
	SourceID      string
	Kind          string
	CanPoll       bool
	CanSend       bool
	Interval      time.Duration
	ErrorInterval time.Duration
	Adapter       secondary.SourceAdapter
}

// Registry maps source IDs to their adapters. It is built once at startup
// and never mutated afterwards, so it needs no locking.
type Registry struct {
	sources map[string]SourceDescriptor
	order   []string
}

// NewRegistry validates and registers descriptors.
func NewRegistry(descs ...SourceDescriptor) (*Registry, error) {
	r := &Registry{sources: make(map[string]SourceDescriptor, len(descs))}
	for _, d := range descs {
		if d.SourceID == "" {
			return nil, fmt.Errorf("source descriptor without id")
		}
		if d.Adapter == nil {
			return nil, fmt.Errorf("source %s has no adapter", d.SourceID)
		}
		if got := d.Adapter.SourceID(); got != d.SourceID {
			return nil, fmt.Errorf("source %s: adapter reports id %q", d.SourceID, got)
		}
		if _, exists := r.sources[d.SourceID]; exists {
			return nil, fmt.Errorf("source %s registered twice", d.SourceID)
		}
		if d.CanPoll && d.Interval <= 0 {
			return nil, fmt.Errorf("source %s: poll interval must be positive", d.SourceID)
		}
		if d.ErrorInterval <= 0 {
			d.ErrorInterval = d.Interval * 2
		}
		r.sources[d.SourceID] = d
		r.order = append(r.order, d.SourceID)
	}
	return r, nil
}

// Get returns the descriptor for a source.
func (r *Registry) Get(sourceID string) (SourceDescriptor, bool) {
	d, ok := r.sources[sourceID]
	return d, ok
}

// Pollable returns the descriptors that can be polled, in registration order.
func (r *Registry) Pollable() []SourceDescriptor {
	var out []SourceDescriptor
	for _, id := range r.order {
		if d := r.sources[id]; d.CanPoll {
			out = append(out, d)
		}
	}
	return out
}

// Sender resolves the adapter used to reply on a source.
func (r *Registry) Sender(sourceID string) (secondary.SourceAdapter, error) {
	d, ok := r.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}
	if !d.CanSend {
		return nil, fmt.Errorf("source %q cannot send", sourceID)
	}
	return d.Adapter, nil
}

// Infos lists every source at the port boundary.
func (r *Registry) Infos() []primary.SourceInfo {
	out := make([]primary.SourceInfo, 0, len(r.order))
	for _, id := range r.order {
		d := r.sources[id]
		out = append(out, primary.SourceInfo{
			SourceID:      d.SourceID,
			Kind:          d.Kind,
			CanPoll:       d.CanPoll,
			CanSend:       d.CanSend,
			Interval:      d.Interval,
			ErrorInterval: d.ErrorInterval,
		})
	}
	return out
}
