// Package bus provides a publish/subscribe abstraction for store and
// session events. The default implementation is in-memory; a NATS
// backend is available for multi-process deployments.
package bus

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned when operating on a closed bus or subscription.
var ErrClosed = errors.New("bus or subscription closed")

// Subjects published by the ticket store and conversation layer.
// Subscribers may use wildcards: "deskmate.store.*" matches all store
// events, "deskmate.>" matches everything.
const (
	SubjectStoreSyncing   = "deskmate.store.syncing"
	SubjectStoreRefreshed = "deskmate.store.refreshed"
	SubjectStoreCreated   = "deskmate.store.created"
	SubjectStoreUpdated   = "deskmate.store.updated"
	SubjectStoreClosed    = "deskmate.store.closed"
	SubjectStoreError     = "deskmate.store.error"
	SubjectChatTurn       = "deskmate.chat.turn"
)

// MessageBus is the core interface for event distribution.
// Implementations must be safe for concurrent use.
type MessageBus interface {
	// Publish sends a message to all subscribers of the given subject.
	// Returns immediately; does not wait for message delivery.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The handler is called in a separate goroutine for each message.
	// Supports wildcards: "deskmate.store.*" matches "deskmate.store.created".
	Subscribe(ctx context.Context, subject string, handler MessageHandler) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(msg *Message)

// Message represents an incoming message from the bus.
type Message struct {
	Subject string
	Data    []byte
}

// Subscription represents an active subscription that can be cancelled.
type Subscription interface {
	// Unsubscribe stops receiving messages and cleans up resources.
	Unsubscribe() error

	// Subject returns the subject pattern this subscription is for.
	Subject() string
}

// Config holds configuration for creating a MessageBus.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	// Ignored for the in-memory bus.
	URL string

	// Name is a client identifier for debugging/monitoring.
	Name string

	// Timeout is the connect timeout.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:     "nats://localhost:4222",
		Name:    "deskmate",
		Timeout: 30 * time.Second,
	}
}
