package workflow

import (
	"context"
	"fmt"
	"reflect"
)

// Step is a named unit of work: a forward action plus, optionally, a
// reverse action declared by also implementing Compensator.
//
// A step is stateless and reusable across runs; it owns no mutable
// state of its own. The ID is used for logging and diagnostics only -
// duplicate IDs are legal but discouraged.
type Step interface {
	// ID returns the step name for logging and the run audit log.
	ID() string

	// Execute performs the forward action. Data becomes the next
	// step's input; CompensationData, if set, is handed verbatim to
	// this step's Compensate on rollback. When CompensationData is
	// nil the engine reuses Data as the compensation payload.
	Execute(ctx context.Context, input any, wf *Context) (StepResponse, error)
}

// Compensator is implemented by steps that can undo their forward
// action. The engine detects it by type assertion; steps without it
// are skipped silently during a rollback sweep.
type Compensator interface {
	// Compensate undoes the forward action. It receives the
	// compensation payload captured when Execute succeeded. It is
	// invoked only if Execute already returned successfully.
	Compensate(ctx context.Context, data any, wf *Context) error
}

// StepResponse is the result of a step's forward action.
type StepResponse struct {
	// Data is the forward output, threaded into the next step.
	Data any

	// CompensationData is the payload for this step's Compensate.
	// Opaque to the engine. Nil means Data is reused.
	CompensationData any
}

// ExecuteFunc is a typed forward action.
type ExecuteFunc[TIn, TOut any] func(ctx context.Context, input TIn, wf *Context) (TOut, error)

// CompensateFunc is a typed compensating action.
type CompensateFunc[T any] func(ctx context.Context, data T, wf *Context) error

// NewStep wraps a plain execute function into a Step, using the
// forward output as the implicit compensation payload. Use it when the
// forward result is sufficient context for rollback, or pass a nil
// compensate for steps with no durable effect (pure validations,
// outbound notifications).
//
// The constructor is a pure builder: no I/O happens until the engine
// invokes the step.
func NewStep[TIn, TOut any](id string, execute ExecuteFunc[TIn, TOut], compensate CompensateFunc[TOut]) Step {
	base := funcStep[TIn, TOut]{id: id, execute: execute}
	if compensate == nil {
		return &base
	}
	return &compensableFuncStep[TIn, TOut]{funcStep: base, compensate: compensate}
}

// NewStepWithCompensation wraps an execute function that captures a
// compensation payload distinct from its forward output, e.g. the
// pre-mutation inventory quantity alongside the new order row. Use it
// whenever rollback needs information not present in the forward
// result.
//
// Compensate is mandatory for this constructor; it panics on nil. A
// step that cannot be undone must use NewStep with a nil compensate
// instead.
func NewStepWithCompensation[TIn, TOut, TComp any](
	id string,
	execute func(ctx context.Context, input TIn, wf *Context) (TOut, TComp, error),
	compensate CompensateFunc[TComp],
) Step {
	if compensate == nil {
		panic(fmt.Sprintf("workflow: step %q built with NewStepWithCompensation requires a compensate function", id))
	}
	return &explicitStep[TIn, TOut, TComp]{id: id, execute: execute, compensate: compensate}
}

// funcStep adapts a typed execute function to the Step interface.
type funcStep[TIn, TOut any] struct {
	id      string
	execute ExecuteFunc[TIn, TOut]
}

func (s *funcStep[TIn, TOut]) ID() string { return s.id }

func (s *funcStep[TIn, TOut]) Execute(ctx context.Context, input any, wf *Context) (StepResponse, error) {
	in, err := inputAs[TIn](s.id, input)
	if err != nil {
		return StepResponse{}, err
	}
	out, err := s.execute(ctx, in, wf)
	if err != nil {
		return StepResponse{}, err
	}
	return StepResponse{Data: out}, nil
}

// compensableFuncStep is a funcStep that also compensates with the
// forward output as payload.
type compensableFuncStep[TIn, TOut any] struct {
	funcStep[TIn, TOut]
	compensate CompensateFunc[TOut]
}

func (s *compensableFuncStep[TIn, TOut]) Compensate(ctx context.Context, data any, wf *Context) error {
	d, err := inputAs[TOut](s.id, data)
	if err != nil {
		return err
	}
	return s.compensate(ctx, d, wf)
}

// explicitStep carries a compensation payload distinct from its
// forward output.
type explicitStep[TIn, TOut, TComp any] struct {
	id         string
	execute    func(ctx context.Context, input TIn, wf *Context) (TOut, TComp, error)
	compensate CompensateFunc[TComp]
}

func (s *explicitStep[TIn, TOut, TComp]) ID() string { return s.id }

func (s *explicitStep[TIn, TOut, TComp]) Execute(ctx context.Context, input any, wf *Context) (StepResponse, error) {
	in, err := inputAs[TIn](s.id, input)
	if err != nil {
		return StepResponse{}, err
	}
	out, comp, err := s.execute(ctx, in, wf)
	if err != nil {
		return StepResponse{}, err
	}
	return StepResponse{Data: out, CompensationData: comp}, nil
}

func (s *explicitStep[TIn, TOut, TComp]) Compensate(ctx context.Context, data any, wf *Context) error {
	d, err := inputAs[TComp](s.id, data)
	if err != nil {
		return err
	}
	return s.compensate(ctx, d, wf)
}

// inputAs asserts the dynamic type of a step input or compensation
// payload. A nil value yields the zero value so that pipelines may
// start from a nil input. A mismatch is a composition bug in the
// calling workflow and fails the step with a descriptive error.
func inputAs[T any](stepID string, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("workflow: step %q expected input %s, got %T", stepID, reflect.TypeFor[T](), v)
	}
	return t, nil
}
