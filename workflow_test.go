package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mockStep is a hand-rolled compensable step for engine tests.
type mockStep struct {
	id            string
	executeErr    error
	compensateErr error
	compLog       *[]string

	executed    bool
	compensated bool
}

func newMockStep(id string, compLog *[]string) *mockStep {
	return &mockStep{id: id, compLog: compLog}
}

func (m *mockStep) ID() string { return m.id }

func (m *mockStep) Execute(ctx context.Context, input any, wf *Context) (StepResponse, error) {
	m.executed = true
	if m.executeErr != nil {
		return StepResponse{}, m.executeErr
	}
	return StepResponse{Data: input}, nil
}

func (m *mockStep) Compensate(ctx context.Context, data any, wf *Context) error {
	m.compensated = true
	if m.compLog != nil {
		*m.compLog = append(*m.compLog, m.id)
	}
	return m.compensateErr
}

// addStep returns a step that adds n to an int input, with no
// compensation.
func addStep(id string, n int) Step {
	return NewStep(id,
		func(ctx context.Context, in int, wf *Context) (int, error) {
			return in + n, nil
		},
		nil,
	)
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("empty pipeline returns input unchanged", func(t *testing.T) {
		out, err := New("empty").Run(ctx, "unchanged", NewContext("t1", nil))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != "unchanged" {
			t.Errorf("expected input back, got %v", out)
		}
	})

	t.Run("forward chaining threads outputs", func(t *testing.T) {
		wc := NewContext("t1", nil)
		wf := New("chain", addStep("add-1", 1), addStep("add-2", 2), addStep("add-3", 3))

		out, err := wf.Run(ctx, 0, wc)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != 6 {
			t.Errorf("expected 6, got %v", out)
		}

		want := []CompletedStep{
			{ID: "add-1", Output: 1},
			{ID: "add-2", Output: 3},
			{ID: "add-3", Output: 6},
		}
		if diff := cmp.Diff(want, wc.CompletedSteps); diff != "" {
			t.Errorf("completed steps mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("failed step triggers reverse-order compensation", func(t *testing.T) {
		var compLog []string
		stepA := newMockStep("a", &compLog)
		stepB := newMockStep("b", &compLog)
		stepC := newMockStep("c", &compLog)
		stepC.executeErr = errors.New("c failed")

		_, err := New("rollback", stepA, stepB, stepC).Run(ctx, nil, NewContext("t1", nil))
		if err == nil {
			t.Fatal("expected error")
		}

		// C failed, so it is never compensated; B and A roll back in
		// strict reverse order.
		if diff := cmp.Diff([]string{"b", "a"}, compLog); diff != "" {
			t.Errorf("compensation order mismatch (-want +got):\n%s", diff)
		}
		if stepC.compensated {
			t.Error("failed step must not be compensated")
		}
	})

	t.Run("compensation failure does not stop the sweep", func(t *testing.T) {
		var compLog []string
		stepA := newMockStep("a", &compLog)
		stepB := newMockStep("b", &compLog)
		stepB.compensateErr = errors.New("b compensation failed")
		stepC := newMockStep("c", &compLog)
		cErr := errors.New("c failed")
		stepC.executeErr = cErr

		_, err := New("isolation", stepA, stepB, stepC).Run(ctx, nil, NewContext("t1", nil))

		if !stepA.compensated {
			t.Error("a should still be compensated after b's compensation failed")
		}
		// The caller always gets the original triggering error.
		if !errors.Is(err, cErr) {
			t.Errorf("expected original error %v, got %v", cErr, err)
		}
		if err.Error() != "c failed" {
			t.Errorf("error must be unmodified, got %q", err.Error())
		}
	})

	t.Run("steps without compensation are skipped silently", func(t *testing.T) {
		var compLog []string
		pure := addStep("pure-validation", 1)
		tracked := newMockStep("tracked", &compLog)
		failing := newMockStep("failing", &compLog)
		failing.executeErr = errors.New("boom")

		_, err := New("skip", pure, tracked, failing).Run(ctx, 0, NewContext("t1", nil))
		if err == nil {
			t.Fatal("expected error")
		}

		if diff := cmp.Diff([]string{"tracked"}, compLog); diff != "" {
			t.Errorf("compensation log mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("forward output is the default compensation payload", func(t *testing.T) {
		var got any
		produce := NewStep("produce",
			func(ctx context.Context, in any, wf *Context) (string, error) {
				return "forward-output", nil
			},
			func(ctx context.Context, data string, wf *Context) error {
				got = data
				return nil
			},
		)
		fail := &mockStep{id: "fail", executeErr: errors.New("boom")}

		_, err := New("default-payload", produce, fail).Run(ctx, nil, NewContext("t1", nil))
		if err == nil {
			t.Fatal("expected error")
		}
		if got != "forward-output" {
			t.Errorf("expected forward output as compensation payload, got %v", got)
		}
	})

	t.Run("explicit compensation payload is delivered verbatim", func(t *testing.T) {
		var got any
		produce := NewStepWithCompensation("produce",
			func(ctx context.Context, in any, wf *Context) (string, int, error) {
				return "forward-output", 42, nil
			},
			func(ctx context.Context, data int, wf *Context) error {
				got = data
				return nil
			},
		)
		fail := &mockStep{id: "fail", executeErr: errors.New("boom")}

		_, err := New("explicit-payload", produce, fail).Run(ctx, nil, NewContext("t1", nil))
		if err == nil {
			t.Fatal("expected error")
		}
		if got != 42 {
			t.Errorf("expected compensation payload 42, got %v", got)
		}
	})

	t.Run("input type mismatch fails the step", func(t *testing.T) {
		wf := New("mismatch", addStep("wants-int", 1))

		_, err := wf.Run(ctx, "not an int", NewContext("t1", nil))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("nil workflow context is tolerated", func(t *testing.T) {
		out, err := New("nil-ctx", addStep("add-1", 1)).Run(ctx, 0, nil)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != 1 {
			t.Errorf("expected 1, got %v", out)
		}
	})

	t.Run("package-level Run executes an anonymous pipeline", func(t *testing.T) {
		out, err := Run(ctx, []Step{addStep("add-1", 1), addStep("add-2", 2)}, 0, NewContext("t1", nil))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != 3 {
			t.Errorf("expected 3, got %v", out)
		}
	})
}

func TestRunRecords(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run is recorded as completed", func(t *testing.T) {
		store := NewMemoryStore()
		wf := New("record-ok", addStep("add-1", 1), addStep("add-2", 2)).WithStore(store)

		if _, err := wf.Run(ctx, 0, NewContext("tenant-1", nil)); err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		states, err := store.List(ctx, Filter{Name: "record-ok"})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(states) != 1 {
			t.Fatalf("expected 1 run record, got %d", len(states))
		}

		state := states[0]
		if state.Status != StatusCompleted {
			t.Errorf("expected completed, got %s", state.Status)
		}
		if state.TenantID != "tenant-1" {
			t.Errorf("expected tenant-1, got %s", state.TenantID)
		}
		if diff := cmp.Diff([]string{"add-1", "add-2"}, state.CompletedSteps); diff != "" {
			t.Errorf("completed steps mismatch (-want +got):\n%s", diff)
		}
		if state.CompletedAt == nil {
			t.Error("expected CompletedAt to be set")
		}
	})

	t.Run("rolled-back run is recorded as compensated", func(t *testing.T) {
		store := NewMemoryStore()
		ok := newMockStep("ok", nil)
		failing := newMockStep("failing", nil)
		failing.executeErr = errors.New("boom")

		wf := New("record-compensated", ok, failing).WithStore(store)

		if _, err := wf.Run(ctx, nil, NewContext("tenant-1", nil)); err == nil {
			t.Fatal("expected error")
		}

		states, _ := store.List(ctx, Filter{Name: "record-compensated"})
		if len(states) != 1 {
			t.Fatalf("expected 1 run record, got %d", len(states))
		}
		if states[0].Status != StatusCompensated {
			t.Errorf("expected compensated, got %s", states[0].Status)
		}
		if states[0].Error == "" {
			t.Error("expected error to be recorded")
		}
	})

	t.Run("failed compensation is recorded as failed", func(t *testing.T) {
		store := NewMemoryStore()
		bad := newMockStep("bad-comp", nil)
		bad.compensateErr = errors.New("cannot undo")
		failing := newMockStep("failing", nil)
		failing.executeErr = errors.New("boom")

		wf := New("record-failed", bad, failing).WithStore(store)

		_, err := wf.Run(ctx, nil, NewContext("tenant-1", nil))
		if err == nil || err.Error() != "boom" {
			t.Fatalf("expected original error, got %v", err)
		}

		states, _ := store.List(ctx, Filter{Status: []Status{StatusFailed}})
		if len(states) != 1 {
			t.Fatalf("expected 1 failed record, got %d", len(states))
		}
	})

	t.Run("store failure never changes the run outcome", func(t *testing.T) {
		wf := New("store-down", addStep("add-1", 1)).WithStore(failingStore{})

		out, err := wf.Run(ctx, 0, NewContext("tenant-1", nil))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if out != 1 {
			t.Errorf("expected 1, got %v", out)
		}
	})
}

// failingStore errors on every call.
type failingStore struct{}

func (failingStore) Create(ctx context.Context, state *State) error { return errors.New("store down") }
func (failingStore) Update(ctx context.Context, state *State) error { return errors.New("store down") }
func (failingStore) Get(ctx context.Context, runID string) (*State, error) {
	return nil, errors.New("store down")
}
func (failingStore) List(ctx context.Context, filter Filter) ([]*State, error) {
	return nil, errors.New("store down")
}
