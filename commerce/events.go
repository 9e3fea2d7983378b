package commerce

// Event names published by the workflows. Emit steps run last in
// their workflows, after the state they announce is durably committed,
// because events cannot be unsent.
const (
	EventOrderCreated       = "order.created"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
	EventProductUpdated     = "product.updated"
)

// OrderCreatedEvent is the payload of EventOrderCreated.
type OrderCreatedEvent struct {
	OrderID    string `msgpack:"order_id" json:"order_id"`
	Number     string `msgpack:"number" json:"number"`
	CustomerID string `msgpack:"customer_id" json:"customer_id"`
	Total      int64  `msgpack:"total" json:"total"`
	ItemCount  int    `msgpack:"item_count" json:"item_count"`
}

// OrderCanceledEvent is the payload of EventOrderCanceled.
type OrderCanceledEvent struct {
	OrderID string `msgpack:"order_id" json:"order_id"`
	Number  string `msgpack:"number" json:"number"`
}

// OrderStatusChangedEvent is the payload of EventOrderStatusChanged.
type OrderStatusChangedEvent struct {
	OrderID  string      `msgpack:"order_id" json:"order_id"`
	Previous OrderStatus `msgpack:"previous" json:"previous"`
	Current  OrderStatus `msgpack:"current" json:"current"`
}

// ProductUpdatedEvent is the payload of EventProductUpdated.
type ProductUpdatedEvent struct {
	ProductID string `msgpack:"product_id" json:"product_id"`
}
