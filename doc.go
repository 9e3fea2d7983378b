// Package workflow provides saga-style orchestration for multi-step
// commerce operations.
//
// A workflow executes an ordered list of steps, threading each step's
// output into the next step's input. When a step fails, steps that
// already completed are compensated in reverse order and the original
// error is returned to the caller unchanged. This approximates a
// distributed transaction across a data store and external effects
// (event publishing, third-party calls) that cannot share a single
// atomic commit.
//
// # Overview
//
// The package provides:
//   - Step interface plus typed constructors (NewStep,
//     NewStepWithCompensation) for defining forward and compensating
//     actions
//   - Workflow orchestrator executing steps in sequence with
//     reverse-order compensation on failure
//   - Context carrying the tenant identifier, an opaque resource
//     handle and the audit log of completed steps through one run
//   - Store interface for recording run state (Memory, Redis, Mongo,
//     Postgres implementations)
//
// # Basic Usage
//
// Build steps with the typed constructors:
//
//	reserve := workflow.NewStepWithCompensation("reserve-inventory",
//	    func(ctx context.Context, in OrderInput, wf *workflow.Context) (OrderInput, []Reservation, error) {
//	        resv, err := reserveStock(ctx, wf.Resource, in)
//	        return in, resv, err
//	    },
//	    func(ctx context.Context, resv []Reservation, wf *workflow.Context) error {
//	        return releaseStock(ctx, wf.Resource, resv)
//	    },
//	)
//
// Compose and run:
//
//	wf := workflow.New("order-creation", validate, reserve, createOrder, emitEvent)
//	out, err := wf.Run(ctx, input, &workflow.Context{TenantID: tenant, Resource: repo})
//	if err != nil {
//	    // A step failed. Compensations for completed steps already ran;
//	    // err is the original step error, untouched.
//	}
//
// # Compensation Behavior
//
// When a step fails:
//  1. Forward execution stops; the failing step is never compensated
//  2. Compensations run in reverse completion order (LIFO)
//  3. A compensation failure is logged and does not stop the sweep
//  4. The caller always receives the original step error
//
// Steps without a compensating action (pure validations, outbound
// notifications) are skipped during the sweep. Place such steps first,
// where failure costs nothing, or last, where failure cannot strand
// partially written state - never between compensable writes.
//
// # Guarantees and Non-Goals
//
// Execution is strictly sequential on the caller's goroutine; the
// engine imposes no timeouts and never retries a step. Run state kept
// in a Store is observability data only: the engine is a single-attempt
// in-process orchestrator, not a durable scheduler, and it provides no
// isolation between concurrent runs touching the same rows. Conflicting
// writes must be serialized by the resource layer, e.g. conditional
// updates inside the step body.
package workflow
