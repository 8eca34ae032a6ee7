// Package queue defines the interface for publishing processed-file events.
// This abstraction keeps the pipeline independent of a specific message
// queue implementation.
package queue

import (
	"context"
	"sync"
)

// ProcessedEvent announces that one page dump was fully ingested.
type ProcessedEvent struct {
	SearchID string `json:"search_id"`
	Filepath string `json:"filepath"`
	Jobs     int    `json:"jobs"`
}

// Provider defines the common interface for a message queue.
type Provider interface {
	// Publish sends a processed-file event to the configured topic.
	Publish(ctx context.Context, event ProcessedEvent) error

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOpProvider is a queue provider that performs no operations.
type NoOpProvider struct{}

// Publish for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Publish(_ context.Context, _ ProcessedEvent) error { return nil }

// Close for NoOpProvider does nothing and returns nil.
func (n *NoOpProvider) Close() error { return nil }

// MemoryProvider records events in memory for development and testing.
type MemoryProvider struct {
	mu     sync.Mutex
	events []ProcessedEvent
}

// Publish appends the event to the in-memory log.
func (m *MemoryProvider) Publish(_ context.Context, event ProcessedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Close does nothing for the memory provider.
func (m *MemoryProvider) Close() error { return nil }

// Events returns a copy of the published events.
func (m *MemoryProvider) Events() []ProcessedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ProcessedEvent, len(m.events))
	copy(out, m.events)
	return out
}
