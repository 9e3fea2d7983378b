package commerce

import (
	"context"
	"errors"

	"syreclabs.com/go/faker"

	"github.com/commercekit/workflow/publish"
)

// newTestService wires a service to a fresh in-memory repository and a
// recording publisher.
func newTestService() (*Service, *MemoryRepository, *publish.Memory) {
	repo := NewMemoryRepository()
	pub := publish.NewMemory()
	svc := NewService(repo, pub)
	return svc, repo, pub
}

// seedProduct stores a quantity-tracked product with fake catalog
// data and returns it.
func seedProduct(repo *MemoryRepository, tenantID, id string, price int64, qty int) *Product {
	product := &Product{
		ID:                id,
		TenantID:          tenantID,
		Title:             faker.Commerce().ProductName(),
		SKU:               faker.Lorem().Word(),
		UnitPrice:         price,
		InventoryQuantity: qty,
		ManageInventory:   true,
	}
	repo.SeedProduct(product)
	return product
}

// newOrderInput builds a valid creation input for the given items.
func newOrderInput(items ...CreateOrderItem) CreateOrderInput {
	return CreateOrderInput{
		CustomerID: faker.Number().Hexadecimal(12),
		Email:      faker.Internet().Email(),
		Items:      items,
	}
}

// failingRepository wraps a Repository and fails selected writes, for
// rollback tests.
type failingRepository struct {
	Repository

	failInsertLineItems bool
	failStatusFor       string // order ID whose status update fails
}

func (r *failingRepository) InsertLineItems(ctx context.Context, items []LineItem) error {
	if r.failInsertLineItems {
		return errors.New("line items write failed")
	}
	return r.Repository.InsertLineItems(ctx, items)
}

func (r *failingRepository) UpdateOrderStatus(ctx context.Context, tenantID, orderID string, status OrderStatus) error {
	if r.failStatusFor == orderID {
		return errors.New("status write failed")
	}
	return r.Repository.UpdateOrderStatus(ctx, tenantID, orderID, status)
}

// failingPublisher rejects every event.
type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, name string, tenantID string, payload any) error {
	return errors.New("broker unavailable")
}
