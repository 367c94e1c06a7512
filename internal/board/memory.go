package board

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process board.  Its contents live as long as the
// process does.
type Memory struct {
	mu       sync.RWMutex
	messages []Message
	now      func() time.Time
}

// NewMemory returns an empty board.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Append adds a message.  The append and the position it lands in are
// decided under one lock, so concurrent posts are totally ordered.
func (m *Memory) Append(_ context.Context, nickname, text string) error {
	if err := validate(text); err != nil {
		return err
	}
	m.mu.Lock()
	m.messages = append(m.messages, Message{Nickname: nickname, Text: text, Posted: m.now()})
	m.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the rendered board.
func (m *Memory) Snapshot(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, len(m.messages))
	for i, msg := range m.messages {
		out[i] = msg.String()
	}
	return out, nil
}

// Messages returns a copy of the stored messages with their posting
// times.
func (m *Memory) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.messages...)
}

// Len returns the number of messages.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages), nil
}
