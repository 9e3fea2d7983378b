package commerce

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusPending is the initial status of a created order.
	OrderStatusPending OrderStatus = "pending"

	// OrderStatusRequiresAction marks an order waiting on manual
	// review (payment flags, address problems).
	OrderStatusRequiresAction OrderStatus = "requires_action"

	// OrderStatusCompleted marks a fulfilled order.
	OrderStatusCompleted OrderStatus = "completed"

	// OrderStatusCanceled marks a canceled order.
	OrderStatusCanceled OrderStatus = "canceled"

	// OrderStatusArchived removes an order from active views.
	OrderStatusArchived OrderStatus = "archived"
)

// legalTransitions maps each status to the statuses it may move to.
// Canceled and archived are terminal.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusCompleted, OrderStatusCanceled, OrderStatusRequiresAction},
	OrderStatusRequiresAction: {OrderStatusPending, OrderStatusCanceled},
	OrderStatusCompleted:      {OrderStatusArchived},
	OrderStatusCanceled:       {},
	OrderStatusArchived:       {},
}

// CanTransition reports whether an order may move from one status to
// another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Product is a sellable catalog entry scoped to a tenant.
type Product struct {
	ID       string
	TenantID string
	Title    string
	SKU      string

	// UnitPrice is the price of one unit in the currency's smallest
	// denomination (cents).
	UnitPrice int64

	// InventoryQuantity is the stock on hand. Meaningful only when
	// ManageInventory is set.
	InventoryQuantity int

	// ManageInventory enables stock tracking and reservation for
	// this product.
	ManageInventory bool

	// AllowBackorder permits orders beyond the available stock.
	AllowBackorder bool
}

// LineItem is one ordered product on an order.
type LineItem struct {
	ID        string
	OrderID   string
	ProductID string
	Title     string
	Quantity  int
	UnitPrice int64

	// Total is UnitPrice * Quantity.
	Total int64
}

// Order is an order row plus its line items.
type Order struct {
	ID         string
	TenantID   string
	Number     string
	Status     OrderStatus
	CustomerID string
	Email      string
	Items      []LineItem

	// Subtotal is the sum of line item totals.
	Subtotal int64

	// ShippingTotal is the shipping cost applied to this order.
	ShippingTotal int64

	// Total is Subtotal + ShippingTotal.
	Total int64

	CurrencyCode string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CanceledAt   *time.Time
}
