package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/commercekit/workflow"
)

// CreateOrderInput is the caller-supplied input of the order-creation
// workflow.
type CreateOrderInput struct {
	CustomerID    string            `validate:"required"`
	Email         string            `validate:"required,email"`
	Items         []CreateOrderItem `validate:"required,min=1,dive"`
	ShippingTotal int64             `validate:"gte=0"`
	Metadata      map[string]string
}

// CreateOrderItem is one requested product and quantity.
type CreateOrderItem struct {
	ProductID string `validate:"required"`
	Quantity  int    `validate:"gt=0"`
}

// orderDraft threads the validated input and the product rows it
// references between the creation steps.
type orderDraft struct {
	input    CreateOrderInput
	products map[string]Product
}

// reservation records one inventory decrement so compensation can
// restore the pre-reservation quantity.
type reservation struct {
	ProductID        string
	Quantity         int
	PreviousQuantity int
}

// repoFrom extracts the Repository from the workflow context.
func repoFrom(wf *workflow.Context) (Repository, error) {
	repo, ok := wf.Resource.(Repository)
	if !ok {
		return nil, fmt.Errorf("workflow context resource is %T, want commerce.Repository", wf.Resource)
	}
	return repo, nil
}

// CreateOrder runs the order-creation workflow:
//
//	validate-order → reserve-inventory → create-order-record →
//	create-order-items → emit-order-created
//
// The non-compensable steps sit at the edges: validation first, where
// failure costs nothing, and event emission last, where failure cannot
// strand partially written state. On any step failure the completed
// steps are compensated and the original error is returned.
func (s *Service) CreateOrder(ctx context.Context, tenantID string, input CreateOrderInput) (*Order, error) {
	wf := s.newWorkflow("order-creation",
		s.validateOrderStep(),
		s.reserveInventoryStep(),
		s.createOrderRecordStep(),
		s.createOrderItemsStep(),
		s.emitOrderCreatedStep(),
	)

	out, err := wf.Run(ctx, input, workflow.NewContext(tenantID, s.repo))
	if err != nil {
		return nil, err
	}
	return out.(*Order), nil
}

// validateOrderStep checks the input shape and, for quantity-tracked
// non-backorderable products, available stock. Pure reads, so it has
// no compensation.
func (s *Service) validateOrderStep() workflow.Step {
	return workflow.NewStep("validate-order",
		func(ctx context.Context, input CreateOrderInput, wf *workflow.Context) (orderDraft, error) {
			if err := s.validate.Struct(input); err != nil {
				return orderDraft{}, fmt.Errorf("invalid order input: %w", err)
			}

			repo, err := repoFrom(wf)
			if err != nil {
				return orderDraft{}, err
			}

			products := make(map[string]Product, len(input.Items))
			for _, item := range input.Items {
				product, err := repo.GetProduct(ctx, wf.TenantID, item.ProductID)
				if err != nil {
					return orderDraft{}, err
				}

				if product.ManageInventory && !product.AllowBackorder &&
					product.InventoryQuantity < item.Quantity {
					return orderDraft{}, insufficientStock(item.ProductID, item.Quantity, product.InventoryQuantity)
				}

				products[item.ProductID] = *product
			}

			return orderDraft{input: input, products: products}, nil
		},
		nil,
	)
}

// reserveInventoryStep decrements stock for each quantity-tracked,
// non-backorderable item. The compensation payload captures every
// pre-reservation quantity; rollback writes those values back.
//
// AdjustQuantity is the race guard between concurrent runs: it applies
// the delta atomically and fails rather than taking stock negative, so
// a reservation that lost a race surfaces as this step's own
// validation failure.
func (s *Service) reserveInventoryStep() workflow.Step {
	return workflow.NewStepWithCompensation("reserve-inventory",
		func(ctx context.Context, draft orderDraft, wf *workflow.Context) (orderDraft, []reservation, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return orderDraft{}, nil, err
			}

			var done []reservation
			for _, item := range draft.input.Items {
				product := draft.products[item.ProductID]
				if !product.ManageInventory || product.AllowBackorder {
					continue
				}

				previous, err := repo.AdjustQuantity(ctx, wf.TenantID, item.ProductID, -item.Quantity)
				if err != nil {
					// A step that fails is never compensated by the
					// engine, so undo this step's own partial work
					// before surfacing the error.
					for _, r := range done {
						repo.SetQuantity(ctx, wf.TenantID, r.ProductID, r.PreviousQuantity)
					}
					return orderDraft{}, nil, err
				}

				done = append(done, reservation{
					ProductID:        item.ProductID,
					Quantity:         item.Quantity,
					PreviousQuantity: previous,
				})
			}

			return draft, done, nil
		},
		func(ctx context.Context, reservations []reservation, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			for _, r := range reservations {
				if err := repo.SetQuantity(ctx, wf.TenantID, r.ProductID, r.PreviousQuantity); err != nil {
					return fmt.Errorf("restore quantity for %s: %w", r.ProductID, err)
				}
			}
			return nil
		},
	)
}

// createOrderRecordStep computes totals, builds the line items and
// inserts the order row. The compensation payload is the new order ID;
// rollback deletes the row.
func (s *Service) createOrderRecordStep() workflow.Step {
	return workflow.NewStepWithCompensation("create-order-record",
		func(ctx context.Context, draft orderDraft, wf *workflow.Context) (*Order, string, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return nil, "", err
			}

			orderID := uuid.NewString()
			now := time.Now().UTC()

			var subtotal int64
			items := make([]LineItem, 0, len(draft.input.Items))
			for _, item := range draft.input.Items {
				product := draft.products[item.ProductID]
				total := product.UnitPrice * int64(item.Quantity)
				subtotal += total
				items = append(items, LineItem{
					ID:        uuid.NewString(),
					OrderID:   orderID,
					ProductID: item.ProductID,
					Title:     product.Title,
					Quantity:  item.Quantity,
					UnitPrice: product.UnitPrice,
					Total:     total,
				})
			}

			order := &Order{
				ID:            orderID,
				TenantID:      wf.TenantID,
				Number:        s.newOrderNumber(),
				Status:        OrderStatusPending,
				CustomerID:    draft.input.CustomerID,
				Email:         draft.input.Email,
				Items:         items,
				Subtotal:      subtotal,
				ShippingTotal: draft.input.ShippingTotal,
				Total:         subtotal + draft.input.ShippingTotal,
				CurrencyCode:  s.settings.CurrencyCode,
				CreatedAt:     now,
				UpdatedAt:     now,
			}

			if err := repo.InsertOrder(ctx, order); err != nil {
				return nil, "", fmt.Errorf("insert order: %w", err)
			}

			return order, orderID, nil
		},
		func(ctx context.Context, orderID string, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			return repo.DeleteOrder(ctx, wf.TenantID, orderID)
		},
	)
}

// createOrderItemsStep inserts the line item rows keyed by the order
// ID. Rollback deletes every line item for that order.
func (s *Service) createOrderItemsStep() workflow.Step {
	return workflow.NewStepWithCompensation("create-order-items",
		func(ctx context.Context, order *Order, wf *workflow.Context) (*Order, string, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return nil, "", err
			}
			if err := repo.InsertLineItems(ctx, order.Items); err != nil {
				return nil, "", fmt.Errorf("insert line items: %w", err)
			}
			return order, order.ID, nil
		},
		func(ctx context.Context, orderID string, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			return repo.DeleteLineItems(ctx, wf.TenantID, orderID)
		},
	)
}

// emitOrderCreatedStep publishes the order.created event. The bus has
// no unsend, so the step runs last, after the order is durably
// committed, and carries no compensation.
func (s *Service) emitOrderCreatedStep() workflow.Step {
	return workflow.NewStep("emit-order-created",
		func(ctx context.Context, order *Order, wf *workflow.Context) (*Order, error) {
			err := s.emit(ctx, EventOrderCreated, wf.TenantID, OrderCreatedEvent{
				OrderID:    order.ID,
				Number:     order.Number,
				CustomerID: order.CustomerID,
				Total:      order.Total,
				ItemCount:  len(order.Items),
			})
			if err != nil {
				return nil, fmt.Errorf("publish %s: %w", EventOrderCreated, err)
			}
			return order, nil
		},
		nil,
	)
}
