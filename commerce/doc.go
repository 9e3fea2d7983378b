// Package commerce implements the order and catalog workflows of the
// platform on top of the workflow engine.
//
// Each business operation - order creation, order cancellation, batch
// status transitions, product updates - is a fixed sequence of steps
// composed with workflow.NewStep and workflow.NewStepWithCompensation.
// The steps interleave writes against a Repository with event
// publishing, so a failure partway through is unwound by application
// level compensations rather than a database rollback.
//
// The Repository is the opaque resource handle carried in the workflow
// Context; the engine never touches it. Serialization of conflicting
// inventory writes lives in the Repository contract: AdjustQuantity
// applies its delta atomically and refuses to take stock below zero,
// so two racing reservations cannot both succeed on the last unit.
//
// Example:
//
//	svc := commerce.NewService(repo, publisher).
//	    WithSettings(settings).
//	    WithRunStore(store)
//
//	order, err := svc.CreateOrder(ctx, tenantID, input)
package commerce
