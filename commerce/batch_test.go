package commerce

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/commercekit/workflow/publish"
)

// createPendingOrder seeds stock and creates one pending order with a
// single unit of prod-1.
func createPendingOrder(t *testing.T, svc *Service, tenantID string) *Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), tenantID,
		newOrderInput(CreateOrderItem{ProductID: "prod-1", Quantity: 1}))
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	return order
}

func TestBatchUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		svc, repo, pub := newTestService()
		seedProduct(repo, "tenant-1", "prod-1", 100, 10)
		first := createPendingOrder(t, svc, "tenant-1")
		second := createPendingOrder(t, svc, "tenant-1")

		orders, err := svc.BatchUpdateStatus(ctx, "tenant-1", BatchStatusInput{
			OrderIDs: []string{first.ID, second.ID},
			Status:   OrderStatusCompleted,
		})
		if err != nil {
			t.Fatalf("BatchUpdateStatus failed: %v", err)
		}
		if len(orders) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(orders))
		}

		for _, id := range []string{first.ID, second.ID} {
			stored, _ := repo.GetOrder(ctx, "tenant-1", id)
			if stored.Status != OrderStatusCompleted {
				t.Errorf("expected order %s completed, got %s", id, stored.Status)
			}
		}

		// Two created events plus one status_changed per order.
		events := pub.Events()
		if len(events) != 4 {
			t.Fatalf("expected 4 events, got %d", len(events))
		}
		want := publish.Recorded{
			Name:     EventOrderStatusChanged,
			TenantID: "tenant-1",
			Payload: OrderStatusChangedEvent{
				OrderID:  first.ID,
				Previous: OrderStatusPending,
				Current:  OrderStatusCompleted,
			},
		}
		if diff := cmp.Diff(want, events[2]); diff != "" {
			t.Errorf("event mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("one illegal transition rejects the whole batch", func(t *testing.T) {
		svc, repo, pub := newTestService()
		seedProduct(repo, "tenant-1", "prod-1", 100, 10)
		pending := createPendingOrder(t, svc, "tenant-1")
		canceled := createPendingOrder(t, svc, "tenant-1")
		if _, err := svc.CancelOrder(ctx, "tenant-1", CancelOrderInput{OrderID: canceled.ID}); err != nil {
			t.Fatalf("CancelOrder failed: %v", err)
		}
		published := len(pub.Events())

		_, err := svc.BatchUpdateStatus(ctx, "tenant-1", BatchStatusInput{
			OrderIDs: []string{pending.ID, canceled.ID},
			Status:   OrderStatusCompleted,
		})
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected ErrInvalidTransition, got %v", err)
		}

		// Nothing moved, nothing published.
		stored, _ := repo.GetOrder(ctx, "tenant-1", pending.ID)
		if stored.Status != OrderStatusPending {
			t.Errorf("expected pending untouched, got %s", stored.Status)
		}
		if len(pub.Events()) != published {
			t.Error("rejected batch must publish nothing")
		}
	})

	t.Run("write failure midway restores earlier orders", func(t *testing.T) {
		repo := NewMemoryRepository()
		pub := publish.NewMemory()
		failing := &failingRepository{Repository: repo}
		svc := NewService(failing, pub)
		seedProduct(repo, "tenant-1", "prod-1", 100, 10)

		first := createPendingOrder(t, svc, "tenant-1")
		second := createPendingOrder(t, svc, "tenant-1")
		failing.failStatusFor = second.ID
		published := len(pub.Events())

		_, err := svc.BatchUpdateStatus(ctx, "tenant-1", BatchStatusInput{
			OrderIDs: []string{first.ID, second.ID},
			Status:   OrderStatusCompleted,
		})
		if err == nil {
			t.Fatal("expected error")
		}

		stored, _ := repo.GetOrder(ctx, "tenant-1", first.ID)
		if stored.Status != OrderStatusPending {
			t.Errorf("expected first order restored to pending, got %s", stored.Status)
		}
		if len(pub.Events()) != published {
			t.Error("failed batch must publish nothing")
		}
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.BatchUpdateStatus(ctx, "tenant-1", BatchStatusInput{
			Status: OrderStatusCompleted,
		})
		if err == nil {
			t.Error("expected validation error")
		}
	})
}
