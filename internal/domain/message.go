// internal/domain/message.go
package domain

import "context"

// Message is a single unit of work taken off a queue.
type Message struct {
	ID    string `json:"id,omitempty"`
	Queue string `json:"queue"`
	Body  []byte `json:"body,omitempty"` // may be nil when the producer sent no body
}

// QueueService hands out messages with destructive (non-peeking) semantics:
// a message returned by Receive has already been removed from the queue.
type QueueService interface {
	// Receive returns the next message on queueName, or (nil, nil) when
	// none became available within the implementation's wait window.
	Receive(ctx context.Context, queueName string) (*Message, error)
}

// QueueSender publishes work onto a queue.
type QueueSender interface {
	Send(ctx context.Context, queueName string, body []byte) error
}
