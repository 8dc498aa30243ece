package broker

import "context"

// Message is a domain event ready for the wire.
type Message struct {
	Key  string
	Body []byte
}

// Publisher forwards domain events to an external system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// NoopPublisher drops every message. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Message) error { return nil }

func (NoopPublisher) Close() error { return nil }
