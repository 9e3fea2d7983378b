package commerce

import (
	"context"
	"fmt"

	"github.com/commercekit/workflow"
)

// UpdateProductInput is the caller-supplied input of the
// product-update workflow. Nil fields are left unchanged.
type UpdateProductInput struct {
	ProductID         string `validate:"required"`
	Title             *string
	SKU               *string
	UnitPrice         *int64 `validate:"omitempty,gte=0"`
	InventoryQuantity *int   `validate:"omitempty,gte=0"`
	AllowBackorder    *bool
}

// productDraft threads the validated input and the current product row
// between the update steps.
type productDraft struct {
	input   UpdateProductInput
	current *Product
}

// UpdateProduct runs the product-update workflow:
//
//	validate-product-update → apply-product-update →
//	emit-product-updated
//
// The apply step keeps a snapshot of the pre-update row as its
// compensation payload, so a later failure restores the product
// exactly as it was.
func (s *Service) UpdateProduct(ctx context.Context, tenantID string, input UpdateProductInput) (*Product, error) {
	wf := s.newWorkflow("product-update",
		s.validateProductUpdateStep(),
		s.applyProductUpdateStep(),
		s.emitProductUpdatedStep(),
	)

	out, err := wf.Run(ctx, input, workflow.NewContext(tenantID, s.repo))
	if err != nil {
		return nil, err
	}
	return out.(*Product), nil
}

// validateProductUpdateStep checks the input shape and loads the
// current row. Pure reads, no compensation.
func (s *Service) validateProductUpdateStep() workflow.Step {
	return workflow.NewStep("validate-product-update",
		func(ctx context.Context, input UpdateProductInput, wf *workflow.Context) (productDraft, error) {
			if err := s.validate.Struct(input); err != nil {
				return productDraft{}, fmt.Errorf("invalid product update: %w", err)
			}

			repo, err := repoFrom(wf)
			if err != nil {
				return productDraft{}, err
			}

			current, err := repo.GetProduct(ctx, wf.TenantID, input.ProductID)
			if err != nil {
				return productDraft{}, err
			}

			return productDraft{input: input, current: current}, nil
		},
		nil,
	)
}

// applyProductUpdateStep writes the changed fields. The compensation
// payload is the full pre-update row.
func (s *Service) applyProductUpdateStep() workflow.Step {
	return workflow.NewStepWithCompensation("apply-product-update",
		func(ctx context.Context, draft productDraft, wf *workflow.Context) (*Product, Product, error) {
			repo, err := repoFrom(wf)
			if err != nil {
				return nil, Product{}, err
			}

			snapshot := *draft.current

			updated := *draft.current
			if draft.input.Title != nil {
				updated.Title = *draft.input.Title
			}
			if draft.input.SKU != nil {
				updated.SKU = *draft.input.SKU
			}
			if draft.input.UnitPrice != nil {
				updated.UnitPrice = *draft.input.UnitPrice
			}
			if draft.input.InventoryQuantity != nil {
				updated.InventoryQuantity = *draft.input.InventoryQuantity
			}
			if draft.input.AllowBackorder != nil {
				updated.AllowBackorder = *draft.input.AllowBackorder
			}

			if err := repo.UpdateProduct(ctx, &updated); err != nil {
				return nil, Product{}, fmt.Errorf("update product: %w", err)
			}

			return &updated, snapshot, nil
		},
		func(ctx context.Context, snapshot Product, wf *workflow.Context) error {
			repo, err := repoFrom(wf)
			if err != nil {
				return err
			}
			return repo.UpdateProduct(ctx, &snapshot)
		},
	)
}

// emitProductUpdatedStep publishes the product.updated event. Last
// step, no compensation.
func (s *Service) emitProductUpdatedStep() workflow.Step {
	return workflow.NewStep("emit-product-updated",
		func(ctx context.Context, product *Product, wf *workflow.Context) (*Product, error) {
			err := s.emit(ctx, EventProductUpdated, wf.TenantID, ProductUpdatedEvent{
				ProductID: product.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("publish %s: %w", EventProductUpdated, err)
			}
			return product, nil
		},
		nil,
	)
}
