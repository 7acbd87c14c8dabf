// Package memory contains an in-memory publisher for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// Publisher stores published payloads for inspection.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	failOn   map[int]error
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	Topic      string
	Payload    any
	Attributes map[string]string
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// FailOn makes publishing return err once n-1 messages have been recorded.
func (p *Publisher) FailOn(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn == nil {
		p.failOn = make(map[int]error)
	}
	p.failOn[n] = err
}

// Publish records the message and returns a pseudo ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failOn[len(p.messages)+1]; err != nil {
		return "", err
	}
	msg := PublishedMessage{Topic: topic, Payload: payload}
	if a, ok := payload.(interface{ Attributes() map[string]string }); ok {
		msg.Attributes = a.Attributes()
	}
	p.messages = append(p.messages, msg)
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
