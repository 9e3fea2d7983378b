package commerce

import (
	"context"
	"fmt"
	"time"

	"github.com/commercekit/workflow"
)

// CancelOrderInput is the caller-supplied input of the
// order-cancellation workflow.
type CancelOrderInput struct {
	OrderID string `validate:"required"`
	Reason  string
}

// statusChange records a status write so compensation can restore the
// previous value.
type statusChange struct {
	OrderID  string
	Previous OrderStatus
}

// CancelOrder runs the order-cancellation workflow, the structural
// mirror of creation:
//
//	validate-cancellation → restore-inventory → update-order-status →
//	emit-order-canceled
func (s *Service) CancelOrder(ctx context.Context, tenantID string, input CancelOrderInput) (*Order, error) {
	wf := s.newWorkflow("order-cancellation",
		s.validateCancellationStep(),
		s.restoreInventoryStep(),
		s.cancelStatusStep(),
		s.emitOrderCanceledStep(),
	)

	out, err := wf.Run(ctx, input, workflow.NewContext(tenantID, s.repo))
	if err != nil {
		return nil, err
	}
	return out.(*Order), nil
}

// validateCancellationStep loads the order and checks the status
// transition is legal. Pure read, no compensation.
func (s *Service) validateCancellationStep() workflow.Step {
	return workflow.NewStep("validate-cancellation",
		func(ctx context.Context, input CancelOrderInput, wf *workflow.Context) (*Order, error) {
			if err := s.validate.Struct(input); err != nil {
				return nil, fmt.Errorf("invalid cancellation input: %w", err)
			}

			repo, err := repoFrom(wf)
			if err != nil {
				return nil, err
			}

			order, err := repo.GetOrder(ctx, wf.TenantID, input.OrderID)
			if err != nil {
				return nil, err
			}

			if !CanTransition(order.Status, OrderStatusCanceled) {
				return nil, fmt.Errorf("%w: cannot cancel order %s in status %s",
					ErrInvalidTransition, order.ID, order.Status)
			}

			return order, nil
		},
		nil,
	)
}

// restoreInventoryStep gives back the stock the order had reserved.
// Its compensation re-applies the original decrement, restoring the
// recorded pre-restore quantity.
func (s *Service) restoreInventoryStep() workflow.Step {
	return workflow.NewStepWithCompensation("restore-inventory",
		func(ctx context.Context, order *Order, wf *workflow.Context) (*Order, []reservation, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return nil, nil, err
			}

			var done []reservation
			for _, item := range order.Items {
				product, err := repo.GetProduct(ctx, wf.TenantID, item.ProductID)
				if err != nil {
					for _, r := range done {
						repo.SetQuantity(ctx, wf.TenantID, r.ProductID, r.PreviousQuantity)
					}
					return nil, nil, err
				}
				if !product.ManageInventory || product.AllowBackorder {
					continue
				}

				previous, err := repo.AdjustQuantity(ctx, wf.TenantID, item.ProductID, item.Quantity)
				if err != nil {
					for _, r := range done {
						repo.SetQuantity(ctx, wf.TenantID, r.ProductID, r.PreviousQuantity)
					}
					return nil, nil, err
				}

				done = append(done, reservation{
					ProductID:        item.ProductID,
					Quantity:         item.Quantity,
					PreviousQuantity: previous,
				})
			}

			return order, done, nil
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

// cancelStatusStep flips the order to canceled, keeping the previous
// status as the compensation payload.
func (s *Service) cancelStatusStep() workflow.Step {
	return workflow.NewStepWithCompensation("update-order-status",
		func(ctx context.Context, order *Order, wf *workflow.Context) (*Order, statusChange, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return nil, statusChange{}, err
			}

			change := statusChange{OrderID: order.ID, Previous: order.Status}

			if err := repo.UpdateOrderStatus(ctx, wf.TenantID, order.ID, OrderStatusCanceled); err != nil {
				return nil, statusChange{}, fmt.Errorf("update order status: %w", err)
			}

			now := time.Now().UTC()
			order.Status = OrderStatusCanceled
			order.CanceledAt = &now

			return order, change, nil
		},
		func(ctx context.Context, change statusChange, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			return repo.UpdateOrderStatus(ctx, wf.TenantID, change.OrderID, change.Previous)
		},
	)
}

// emitOrderCanceledStep publishes the order.canceled event. Last step,
// no compensation.
func (s *Service) emitOrderCanceledStep() workflow.Step {
	return workflow.NewStep("emit-order-canceled",
		func(ctx context.Context, order *Order, wf *workflow.Context) (*Order, error) {
			err := s.emit(ctx, EventOrderCanceled, wf.TenantID, OrderCanceledEvent{
				OrderID: order.ID,
				Number:  order.Number,
			})
			if err != nil {
				return nil, fmt.Errorf("publish %s: %w", EventOrderCanceled, err)
			}
			return order, nil
		},
		nil,
	)
}
