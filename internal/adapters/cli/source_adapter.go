package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/example/switchboard/internal/ports/primary"
)

// SourceAdapter translates CLI operations to PollerService calls.
type SourceAdapter struct {
	service primary.PollerService
	out     io.Writer
}

// NewSourceAdapter creates a new SourceAdapter with the given service.
func NewSourceAdapter(service primary.PollerService, out io.Writer) *SourceAdapter {
	return &SourceAdapter{
		service: service,
		out:     out,
	}
}

// List prints the registered sources and their capabilities.
func (a *SourceAdapter) List() {
	sources := a.service.Sources()
	if len(sources) == 0 {
		fmt.Fprintln(a.out, "No sources configured")
		return
	}

	fmt.Fprintf(a.out, "\n%-12s %-10s %-6s %-6s %s\n", "SOURCE", "KIND", "POLL", "SEND", "INTERVAL")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────")
	for _, s := range sources {
		interval := "-"
		if s.CanPoll {
			interval = fmt.Sprintf("%s (%s after error)", s.Interval, s.ErrorInterval)
		}
		fmt.Fprintf(a.out, "%-12s %-10s %-6s %-6s %s\n", s.SourceID, s.Kind, yesNo(s.CanPoll), yesNo(s.CanSend), interval)
	}
	fmt.Fprintln(a.out)
}

// Poll polls one source, or every pollable source when sourceID is empty.
// It keeps going past failing sources and reports them together.
func (a *SourceAdapter) Poll(ctx context.Context, sourceID string) error {
	var ids []string
	if sourceID != "" {
		ids = []string{sourceID}
	} else {
		for _, s := range a.service.Sources() {
			if s.CanPoll {
				ids = append(ids, s.SourceID)
			}
		}
	}

	var failed []string
	for _, id := range ids {
		res, err := a.service.PollOnce(ctx, id)
		if err != nil {
			fmt.Fprintf(a.out, "✗ %s: %v\n", id, err)
			failed = append(failed, id)
			continue
		}
		fmt.Fprintf(a.out, "✓ %s: fetched %d, enqueued %d, duplicates %d\n", id, res.Fetched, len(res.Enqueued), res.Duplicates)
		for _, mid := range res.Enqueued {
			fmt.Fprintf(a.out, "  + %s\n", mid)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("poll failed for %s", strings.Join(failed, ", "))
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
