package commerce

import (
	"errors"
	"fmt"
)

// Sentinel errors for workflow validation failures. Check them with
// errors.Is; they may carry additional context via wrapping.
var (
	// ErrInsufficientStock indicates a quantity-tracked,
	// non-backorderable product cannot cover the requested quantity.
	// The message casing is load-bearing: upstream handlers branch on
	// the "Insufficient stock" substring.
	ErrInsufficientStock = errors.New("Insufficient stock")

	// ErrProductNotFound indicates an unknown product for the tenant.
	ErrProductNotFound = errors.New("product not found")

	// ErrOrderNotFound indicates an unknown order for the tenant.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition indicates an illegal order status change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// insufficientStock builds the canonical stock failure for a product.
func insufficientStock(productID string, requested, available int) error {
	return fmt.Errorf("%w for product %s: requested %d, available %d",
		ErrInsufficientStock, productID, requested, available)
}
