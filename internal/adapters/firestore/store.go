// Package firestore contains Cloud Firestore implementations of the
// persistence ports, for running the durable store without a local disk.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
)

// Collection names.
const (
	messagesCollection = "messages"
	dedupCollection    = "message_keys"
	countersCollection = "counters"
	turnsCollection    = "conversation_turns"
	eventsCollection   = "events"
)

// Client owns the Firestore connection shared by the stores.
type Client struct {
	fs     *firestore.Client
	prefix string
	now    func() time.Time
}

// NewClient connects to Firestore. prefix namespaces every collection so
// several deployments can share one project.
func NewClient(ctx context.Context, projectID, prefix string) (*Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	fs, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &Client{fs: fs, prefix: prefix, now: time.Now}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) col(name string) *firestore.CollectionRef {
	return c.fs.Collection(c.prefix + name)
}

// nextSeq increments a named counter inside tx. Reads happen before writes,
// so callers must invoke it before any tx write.
func (c *Client) nextSeq(tx *firestore.Transaction, name string) (int64, func() error, error) {
	ref := c.col(countersCollection).Doc(name)
	var current int64
	snap, err := tx.Get(ref)
	switch {
	case isNotFound(err):
	case err != nil:
		return 0, nil, fmt.Errorf("failed to read counter %s: %w", name, err)
	default:
		v, err := snap.DataAt("value")
		if err != nil {
			return 0, nil, fmt.Errorf("failed to decode counter %s: %w", name, err)
		}
		if n, ok := v.(int64); ok {
			current = n
		}
	}
	next := current + 1
	write := func() error {
		return tx.Set(ref, map[string]any{"value": next})
	}
	return next, write, nil
}

func dedupKey(sourceID, externalID string) string {
	sum := sha256.Sum256([]byte(sourceID + "\x00" + externalID))
	return hex.EncodeToString(sum[:])
}
