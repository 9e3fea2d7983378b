package commerce

import (
	"context"
	"fmt"
	"sync"
)

// Repository is the data store the workflow steps read and write. It
// is carried as the opaque resource handle in the workflow Context;
// the engine never calls it.
//
// Implementations must be safe for concurrent use and must apply
// AdjustQuantity atomically: the read-modify-write of the stock level
// is the one place where two concurrent sagas can race, and the
// engine deliberately provides no cross-run isolation. A SQL-backed
// implementation would issue a conditional
// UPDATE ... WHERE inventory_quantity >= $requested and treat zero
// rows affected as ErrInsufficientStock.
type Repository interface {
	// GetProduct retrieves a product by ID within a tenant.
	GetProduct(ctx context.Context, tenantID, productID string) (*Product, error)

	// UpdateProduct replaces a product row.
	UpdateProduct(ctx context.Context, product *Product) error

	// AdjustQuantity atomically applies delta to a product's stock
	// and returns the quantity before the change. It fails with
	// ErrInsufficientStock when the result would be negative, leaving
	// the stock untouched.
	AdjustQuantity(ctx context.Context, tenantID, productID string, delta int) (previous int, err error)

	// SetQuantity overwrites a product's stock level. Used by
	// compensations that restore a recorded pre-reservation value.
	SetQuantity(ctx context.Context, tenantID, productID string, quantity int) error

	// InsertOrder inserts an order row (without its line items).
	InsertOrder(ctx context.Context, order *Order) error

	// GetOrder retrieves an order and its line items.
	GetOrder(ctx context.Context, tenantID, orderID string) (*Order, error)

	// DeleteOrder removes an order row.
	DeleteOrder(ctx context.Context, tenantID, orderID string) error

	// UpdateOrderStatus changes an order's status.
	UpdateOrderStatus(ctx context.Context, tenantID, orderID string, status OrderStatus) error

	// InsertLineItems inserts line item rows.
	InsertLineItems(ctx context.Context, items []LineItem) error

	// DeleteLineItems removes all line items for an order.
	DeleteLineItems(ctx context.Context, tenantID, orderID string) error
}

// MemoryRepository is an in-memory Repository for tests and local
// development. All operations run under one mutex, which makes
// AdjustQuantity trivially atomic.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]*Product   // tenantID/productID
	orders   map[string]*Order     // tenantID/orderID
	items    map[string][]LineItem // orderID (order IDs are globally unique)
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[string]*Product),
		orders:   make(map[string]*Order),
		items:    make(map[string][]LineItem),
	}
}

func scopedKey(tenantID, id string) string {
	return tenantID + "/" + id
}

// SeedProduct inserts or replaces a product. Test helper.
func (r *MemoryRepository) SeedProduct(product *Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *product
	r.products[scopedKey(product.TenantID, product.ID)] = &stored
}

// GetProduct retrieves a product by ID within a tenant.
func (r *MemoryRepository) GetProduct(ctx context.Context, tenantID, productID string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[scopedKey(tenantID, productID)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	result := *product
	return &result, nil
}

// UpdateProduct replaces a product row.
func (r *MemoryRepository) UpdateProduct(ctx context.Context, product *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scopedKey(product.TenantID, product.ID)
	if _, ok := r.products[key]; !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, product.ID)
	}

	stored := *product
	r.products[key] = &stored
	return nil
}

// AdjustQuantity atomically applies delta to a product's stock.
func (r *MemoryRepository) AdjustQuantity(ctx context.Context, tenantID, productID string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[scopedKey(tenantID, productID)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	previous := product.InventoryQuantity
	next := previous + delta
	if next < 0 {
		return previous, insufficientStock(productID, -delta, previous)
	}

	product.InventoryQuantity = next
	return previous, nil
}

// SetQuantity overwrites a product's stock level.
func (r *MemoryRepository) SetQuantity(ctx context.Context, tenantID, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[scopedKey(tenantID, productID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}

	product.InventoryQuantity = quantity
	return nil
}

// InsertOrder inserts an order row.
func (r *MemoryRepository) InsertOrder(ctx context.Context, order *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scopedKey(order.TenantID, order.ID)
	if _, exists := r.orders[key]; exists {
		return fmt.Errorf("order already exists: %s", order.ID)
	}

	stored := *order
	stored.Items = nil
	r.orders[key] = &stored
	return nil
}

// GetOrder retrieves an order and its line items.
func (r *MemoryRepository) GetOrder(ctx context.Context, tenantID, orderID string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := scopedKey(tenantID, orderID)
	order, ok := r.orders[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	result := *order
	result.Items = append([]LineItem(nil), r.items[orderID]...)
	return &result, nil
}

// DeleteOrder removes an order row.
func (r *MemoryRepository) DeleteOrder(ctx context.Context, tenantID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := scopedKey(tenantID, orderID)
	if _, ok := r.orders[key]; !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	delete(r.orders, key)
	delete(r.items, orderID)
	return nil
}

// UpdateOrderStatus changes an order's status.
func (r *MemoryRepository) UpdateOrderStatus(ctx context.Context, tenantID, orderID string, status OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[scopedKey(tenantID, orderID)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	order.Status = status
	return nil
}

// InsertLineItems inserts line item rows.
func (r *MemoryRepository) InsertLineItems(ctx context.Context, items []LineItem) error {
	if len(items) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		r.items[item.OrderID] = append(r.items[item.OrderID], item)
	}
	return nil
}

// DeleteLineItems removes all line items for an order.
func (r *MemoryRepository) DeleteLineItems(ctx context.Context, tenantID, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, orderID)
	return nil
}

// OrderCount returns the number of stored order rows. Test helper.
func (r *MemoryRepository) OrderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// LineItemCount returns the number of stored line items for an order.
// Test helper.
func (r *MemoryRepository) LineItemCount(orderID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items[orderID])
}

// Compile-time check
var _ Repository = (*MemoryRepository)(nil)
