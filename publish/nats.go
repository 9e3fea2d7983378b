package publish

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATS publishes events to NATS subjects. The event name is used as
// the subject, optionally under a prefix, so "order.created" published
// with prefix "commerce" goes to "commerce.order.created".
//
// Delivery is fire-and-forget on the core NATS protocol; callers that
// need at-least-once should point the connection at a JetStream
// context upstream of this type.
//
// Example:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	pub := publish.NewNATS(nc).WithSubjectPrefix("commerce")
type NATS struct {
	conn   *nats.Conn
	prefix string
}

// NewNATS creates a NATS publisher on an established connection.
func NewNATS(conn *nats.Conn) *NATS {
	return &NATS{conn: conn}
}

// WithSubjectPrefix namespaces every published subject.
//
// Returns the publisher for method chaining.
func (p *NATS) WithSubjectPrefix(prefix string) *NATS {
	p.prefix = prefix
	return p
}

// Publish encodes the envelope and publishes it to the event's subject.
func (p *NATS) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	data, _, err := encode(name, tenantID, payload)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", name, err)
	}

	subject := name
	if p.prefix != "" {
		subject = p.prefix + "." + name
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	return nil
}

// Compile-time check
var _ Publisher = (*NATS)(nil)
