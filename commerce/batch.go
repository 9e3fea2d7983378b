package commerce

import (
	"context"
	"fmt"

	"github.com/commercekit/workflow"
)

// BatchStatusInput is the caller-supplied input of the batch status
// workflow.
type BatchStatusInput struct {
	OrderIDs []string    `validate:"required,min=1,dive,required"`
	Status   OrderStatus `validate:"required"`
}

// batchDraft threads the loaded orders and the target status between
// the batch steps.
type batchDraft struct {
	orders  []*Order
	status  OrderStatus
	changes []statusChange
}

// BatchUpdateStatus moves a set of orders to a new status in one
// workflow run:
//
//	validate-status-batch → apply-status-batch → emit-status-batch
//
// The transition is all-or-nothing: one illegal transition fails
// validation before any write, and a write failure midway restores
// every already-updated order to its previous status.
func (s *Service) BatchUpdateStatus(ctx context.Context, tenantID string, input BatchStatusInput) ([]*Order, error) {
	wf := s.newWorkflow("order-status-batch",
		s.validateStatusBatchStep(),
		s.applyStatusBatchStep(),
		s.emitStatusBatchStep(),
	)

	out, err := wf.Run(ctx, input, workflow.NewContext(tenantID, s.repo))
	if err != nil {
		return nil, err
	}
	return out.([]*Order), nil
}

// validateStatusBatchStep loads every order and rejects the batch if
// any transition is illegal. Pure reads, no compensation.
func (s *Service) validateStatusBatchStep() workflow.Step {
	return workflow.NewStep("validate-status-batch",
		func(ctx context.Context, input BatchStatusInput, wf *workflow.Context) (batchDraft, error) {
			if err := s.validate.Struct(input); err != nil {
				return batchDraft{}, fmt.Errorf("invalid batch input: %w", err)
			}

			repo, err := repoFrom(wf)
			if err != nil {
				return batchDraft{}, err
			}

			orders := make([]*Order, 0, len(input.OrderIDs))
			for _, orderID := range input.OrderIDs {
				order, err := repo.GetOrder(ctx, wf.TenantID, orderID)
				if err != nil {
					return batchDraft{}, err
				}
				if !CanTransition(order.Status, input.Status) {
					return batchDraft{}, fmt.Errorf("%w: order %s cannot move from %s to %s",
						ErrInvalidTransition, order.ID, order.Status, input.Status)
				}
				orders = append(orders, order)
			}

			return batchDraft{orders: orders, status: input.Status}, nil
		},
		nil,
	)
}

// applyStatusBatchStep writes the new status to every order. The
// compensation payload records each previous status; rollback writes
// them back in place.
func (s *Service) applyStatusBatchStep() workflow.Step {
	return workflow.NewStepWithCompensation("apply-status-batch",
		func(ctx context.Context, draft batchDraft, wf *workflow.Context) (batchDraft, []statusChange, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return batchDraft{}, nil, err
			}

			var done []statusChange
			for _, order := range draft.orders {
				previous := order.Status
				if err := repo.UpdateOrderStatus(ctx, wf.TenantID, order.ID, draft.status); err != nil {
					for _, c := range done {
						repo.UpdateOrderStatus(ctx, wf.TenantID, c.OrderID, c.Previous)
					}
					return batchDraft{}, nil, fmt.Errorf("update order %s: %w", order.ID, err)
				}
				order.Status = draft.status
				done = append(done, statusChange{OrderID: order.ID, Previous: previous})
			}

			draft.changes = done
			return draft, done, nil
		},
		func(ctx context.Context, changes []statusChange, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			for _, c := range changes {
				if err := repo.UpdateOrderStatus(ctx, wf.TenantID, c.OrderID, c.Previous); err != nil {
					return fmt.Errorf("restore status for %s: %w", c.OrderID, err)
				}
			}
			return nil
		},
	)
}

// emitStatusBatchStep publishes one order.status_changed event per
// order. Last step, no compensation.
func (s *Service) emitStatusBatchStep() workflow.Step {
	return workflow.NewStep("emit-status-batch",
		func(ctx context.Context, draft batchDraft, wf *workflow.Context) ([]*Order, error) {
			for _, change := range draft.changes {
				err := s.emit(ctx, EventOrderStatusChanged, wf.TenantID, OrderStatusChangedEvent{
					OrderID:  change.OrderID,
					Previous: change.Previous,
					Current:  draft.status,
				})
				if err != nil {
					return nil, fmt.Errorf("publish %s: %w", EventOrderStatusChanged, err)
				}
			}
			return draft.orders, nil
		},
		nil,
	)
}
