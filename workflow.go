package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Workflow orchestrates a sequence of steps with compensation.
//
// Steps execute in the exact order supplied, each step's output
// becoming the next step's input. On failure the completed steps are
// compensated in reverse order and the original error is returned.
//
// Example:
//
//	wf := workflow.New("order-creation",
//	    validateOrder, reserveInventory, createOrderRecord,
//	    createOrderItems, emitOrderCreated,
//	).WithStore(store)
//
//	out, err := wf.Run(ctx, input, workflow.NewContext(tenantID, repo))
type Workflow struct {
	name           string
	steps          []Step
	store          Store
	logger         *slog.Logger
	tracingEnabled bool
	metricsEnabled bool
}

// completedStep is the engine-internal record of a step whose forward
// action succeeded. This list, not Context.CompletedSteps, is the sole
// source of truth for what must be compensated on failure.
type completedStep struct {
	step             Step
	compensationData any
}

// New creates a workflow definition. The name is used for logging,
// run records and telemetry; steps run in the order given.
func New(name string, steps ...Step) *Workflow {
	return &Workflow{
		name:   name,
		steps:  steps,
		logger: slog.Default().With("workflow", name),
	}
}

// WithStore sets an optional run-state store. Store writes are
// best-effort: a store failure is logged and never changes the outcome
// of a run.
//
// Returns the workflow for method chaining.
func (w *Workflow) WithStore(store Store) *Workflow {
	w.store = store
	return w
}

// WithLogger sets a custom logger.
//
// Returns the workflow for method chaining.
func (w *Workflow) WithLogger(logger *slog.Logger) *Workflow {
	w.logger = logger.With("workflow", w.name)
	return w
}

// WithTracing enables an OpenTelemetry span per run.
//
// Returns the workflow for method chaining.
func (w *Workflow) WithTracing() *Workflow {
	w.tracingEnabled = true
	return w
}

// WithMetrics enables OpenTelemetry run counters.
//
// Returns the workflow for method chaining.
func (w *Workflow) WithMetrics() *Workflow {
	w.metricsEnabled = true
	return w
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Steps returns the workflow steps.
func (w *Workflow) Steps() []Step { return w.steps }

// Run executes the workflow against input.
//
// Each step's Execute is awaited before the next begins; there is no
// internal parallelism, queueing or retry. An empty workflow returns
// the input unchanged.
//
// On a step failure, Run compensates completed steps in reverse order.
// Compensation is best-effort: a failing Compensate is logged and does
// not stop the sweep. Run then returns the original step error,
// unmodified - compensation failures are observability data only,
// surfaced via the logger and the run record, never as the returned
// error.
//
// Run never mutates wc.Resource; it only appends to wc.CompletedSteps.
func (w *Workflow) Run(ctx context.Context, input any, wc *Context) (any, error) {
	if wc == nil {
		wc = &Context{}
	}

	runID := uuid.NewString()
	logger := w.logger.With("run_id", runID)

	if w.tracingEnabled {
		tracer := otel.Tracer(w.name)
		var span trace.Span
		ctx, span = tracer.Start(ctx, w.name+".run",
			trace.WithAttributes(
				attribute.String("workflow.run_id", runID),
				attribute.String("workflow.tenant_id", wc.TenantID)))
		defer span.End()
	}

	now := time.Now()
	state := &State{
		RunID:         runID,
		Name:          w.name,
		TenantID:      wc.TenantID,
		Status:        StatusRunning,
		StartedAt:     now,
		LastUpdatedAt: now,
	}
	if w.store != nil {
		if err := w.store.Create(ctx, state); err != nil {
			logger.Error("failed to create run record", "error", err)
		}
	}

	current := input
	completed := make([]completedStep, 0, len(w.steps))

	for i, step := range w.steps {
		state.CurrentStep = i

		logger.Info("executing step",
			"step", step.ID(),
			"step_index", i)

		resp, err := step.Execute(ctx, current, wc)
		if err != nil {
			logger.Error("step failed",
				"step", step.ID(),
				"error", err)

			state.Status = StatusCompensating
			state.Error = err.Error()
			w.updateState(ctx, logger, state)

			compErr := w.compensate(ctx, logger, runID, completed, wc)
			if compErr != nil {
				state.Status = StatusFailed
				state.Error = err.Error() + "; " + compErr.Error()
			} else {
				state.Status = StatusCompensated
			}

			done := time.Now()
			state.CompletedAt = &done
			w.updateState(ctx, logger, state)
			w.countRun(ctx, state.Status)

			// Always the original triggering error, untouched.
			return nil, err
		}

		compData := resp.CompensationData
		if compData == nil {
			compData = resp.Data
		}
		completed = append(completed, completedStep{step: step, compensationData: compData})
		wc.CompletedSteps = append(wc.CompletedSteps, CompletedStep{ID: step.ID(), Output: resp.Data})
		state.CompletedSteps = append(state.CompletedSteps, step.ID())
		w.updateState(ctx, logger, state)

		current = resp.Data

		logger.Debug("step completed", "step", step.ID())
	}

	state.Status = StatusCompleted
	done := time.Now()
	state.CompletedAt = &done
	w.updateState(ctx, logger, state)
	w.countRun(ctx, StatusCompleted)

	logger.Info("workflow completed", "steps", len(w.steps))

	return current, nil
}

// compensate runs compensations in reverse completion order. Steps
// that do not implement Compensator are skipped.
func (w *Workflow) compensate(ctx context.Context, logger *slog.Logger, runID string, completed []completedStep, wc *Context) error {
	logger.Info("starting compensation",
		"steps_completed", len(completed))

	var errs []error

	for i := len(completed) - 1; i >= 0; i-- {
		c := completed[i]

		comp, ok := c.step.(Compensator)
		if !ok {
			logger.Debug("step has no compensation, skipping", "step", c.step.ID())
			continue
		}

		logger.Info("compensating step", "step", c.step.ID())

		if err := comp.Compensate(ctx, c.compensationData, wc); err != nil {
			logger.Error("compensation failed",
				"step", c.step.ID(),
				"error", err)

			errs = append(errs, &stepCompensationError{step: c.step.ID(), err: err})
			// Remaining compensations still run.
		}
	}

	if len(errs) > 0 {
		return &CompensationError{Errors: errs}
	}

	logger.Info("compensation completed")
	return nil
}

// stepCompensationError ties a compensation failure to its step for
// the aggregated CompensationError.
type stepCompensationError struct {
	step string
	err  error
}

func (e *stepCompensationError) Error() string {
	return "compensate " + e.step + ": " + e.err.Error()
}

func (e *stepCompensationError) Unwrap() error { return e.err }

// updateState persists run state if a store is configured.
func (w *Workflow) updateState(ctx context.Context, logger *slog.Logger, state *State) {
	state.LastUpdatedAt = time.Now()

	if w.store != nil {
		if err := w.store.Update(ctx, state); err != nil {
			logger.Error("failed to update run record", "error", err)
		}
	}
}

// countRun records the terminal status of a run.
func (w *Workflow) countRun(ctx context.Context, status Status) {
	if !w.metricsEnabled {
		return
	}
	meter := otel.Meter(w.name)
	runs, _ := meter.Int64Counter("workflow.runs",
		metric.WithDescription("Total number of workflow runs by terminal status"))
	runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", w.name),
		attribute.String("status", string(status))))
}

// Run executes an anonymous pipeline of steps. It is shorthand for
// New("workflow", steps...).Run(ctx, input, wc); named workflows give
// better logs and run records.
func Run(ctx context.Context, steps []Step, input any, wc *Context) (any, error) {
	return New("workflow", steps...).Run(ctx, input, wc)
}
