package publish

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEnvelope(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		type payload struct {
			OrderID string `msgpack:"order_id"`
			Total   int64  `msgpack:"total"`
		}

		data, id, err := encode("order.created", "tenant-1", payload{OrderID: "o-1", Total: 4200})
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		if id == "" {
			t.Error("expected a generated event ID")
		}

		env, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if env.ID != id {
			t.Errorf("expected ID %s, got %s", id, env.ID)
		}
		if env.Name != "order.created" || env.TenantID != "tenant-1" {
			t.Errorf("unexpected envelope: %+v", env)
		}
		if env.OccurredAt.IsZero() {
			t.Error("expected OccurredAt to be set")
		}

		var got payload
		if err := msgpack.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("payload unmarshal failed: %v", err)
		}
		if diff := cmp.Diff(payload{OrderID: "o-1", Total: 4200}, got); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("decode rejects garbage", func(t *testing.T) {
		if _, err := Decode([]byte{0xc1}); err == nil {
			t.Error("expected error")
		}
	})
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	pub := NewMemory()

	if err := pub.Publish(ctx, "order.created", "tenant-1", "p1"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := pub.Publish(ctx, "order.canceled", "tenant-2", "p2"); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	want := []Recorded{
		{Name: "order.created", TenantID: "tenant-1", Payload: "p1"},
		{Name: "order.canceled", TenantID: "tenant-2", Payload: "p2"},
	}
	if diff := cmp.Diff(want, pub.Events()); diff != "" {
		t.Errorf("recorded events mismatch (-want +got):\n%s", diff)
	}

	// Events returns a copy.
	events := pub.Events()
	events[0].Name = "mutated"
	if pub.Events()[0].Name != "order.created" {
		t.Error("recorded events were mutated through a returned copy")
	}
}

func TestRateLimited(t *testing.T) {
	t.Run("delegates within the limit", func(t *testing.T) {
		inner := NewMemory()
		pub := NewRateLimited(inner, 100, 5)

		for i := 0; i < 3; i++ {
			if err := pub.Publish(context.Background(), "order.created", "tenant-1", i); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
		}
		if got := len(inner.Events()); got != 3 {
			t.Errorf("expected 3 delegated events, got %d", got)
		}
	})

	t.Run("respects context cancellation while waiting", func(t *testing.T) {
		// Zero burst: every Wait blocks until the deadline.
		pub := NewRateLimited(NewMemory(), 1, 0)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		if err := pub.Publish(ctx, "order.created", "tenant-1", nil); err == nil {
			t.Error("expected error from cancelled wait")
		}
	})
}
