package broker

import (
	"context"
	"sync"

	"github.com/segmentio/kafka-go"
)

// MockKafkaWriter records written messages in memory.
type MockKafkaWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	Err      error
	Closed   bool
}

func (m *MockKafkaWriter) WriteMessages(_ context.Context, messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, messages...)
	return nil
}

func (m *MockKafkaWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Written returns a copy of the recorded messages.
func (m *MockKafkaWriter) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.Messages...)
}
