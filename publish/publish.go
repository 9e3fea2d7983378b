// Package publish provides the event-publishing side of the workflow
// engine's emit steps.
//
// The workflows in this module treat the event bus as a fire-and-forget
// collaborator with at-least-once delivery: an emit step hands an
// envelope to a Publisher and never waits for durability beyond
// "accepted by the broker client". This package supplies the broker
// implementations (NATS, Kafka), a rate-limiting decorator, and an
// in-memory double for tests.
//
// Events carry a msgpack-encoded Envelope on the wire:
//
//	{id, name, tenant_id, occurred_at, payload}
package publish

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

// Publisher publishes domain events. Implementations must be safe for
// concurrent use. Publish returning nil means the event was accepted
// by the underlying client, not that any consumer saw it.
type Publisher interface {
	Publish(ctx context.Context, name string, tenantID string, payload any) error
}

// Envelope is the wire format for a published event.
type Envelope struct {
	ID         string             `msgpack:"id"`
	Name       string             `msgpack:"name"`
	TenantID   string             `msgpack:"tenant_id"`
	OccurredAt time.Time          `msgpack:"occurred_at"`
	Payload    msgpack.RawMessage `msgpack:"payload"`
}

// encode builds and serializes an envelope for one event.
func encode(name, tenantID string, payload any) ([]byte, string, error) {
	body, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, "", err
	}

	env := Envelope{
		ID:         uuid.NewString(),
		Name:       name,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    body,
	}

	data, err := msgpack.Marshal(env)
	if err != nil {
		return nil, "", err
	}

	return data, env.ID, nil
}

// Decode parses a wire envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Recorded is one event captured by a Memory publisher.
type Recorded struct {
	Name     string
	TenantID string
	Payload  any
}

// Memory is an in-process publisher that records every event. It is
// the test double for emit steps.
type Memory struct {
	mu     sync.Mutex
	events []Recorded
}

// NewMemory creates a recording in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish records the event.
func (m *Memory) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, Recorded{Name: name, TenantID: tenantID, Payload: payload})
	return nil
}

// Events returns a copy of everything published so far.
func (m *Memory) Events() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Recorded(nil), m.events...)
}

// Nop is a publisher that drops every event.
type Nop struct{}

// Publish discards the event.
func (Nop) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	return nil
}

// Compile-time checks
var (
	_ Publisher = (*Memory)(nil)
	_ Publisher = Nop{}
)
