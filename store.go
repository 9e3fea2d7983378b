package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the recorded state of one workflow run.
//
// The engine writes it to the configured Store after every step so
// that operators can inspect in-flight and finished runs. It is
// observability data: the engine never reads it back, and a run does
// not survive a process crash.
type State struct {
	RunID          string     // Run instance ID (unique per execution)
	Name           string     // Workflow definition name (e.g. "order-creation")
	TenantID       string     // Tenant the run was scoped to
	Status         Status     // Current status
	CurrentStep    int        // Index of current/failed step
	CompletedSteps []string   // IDs of completed steps, in order
	Error          string     // Error message if the run failed
	StartedAt      time.Time  // When the run started
	CompletedAt    *time.Time // When the run finished (nil if running)
	LastUpdatedAt  time.Time  // Last state update
}

// Status represents the state of a run.
//
// State transitions:
//
//	running → completed
//	       ↘
//	    compensating → compensated
//	                ↘
//	                failed
//
// From the caller's perspective a failed run always surfaces as a
// single returned error; compensated vs failed distinguishes, in the
// run record only, whether the rollback sweep itself lost work.
type Status string

const (
	// StatusRunning indicates the run is executing steps.
	StatusRunning Status = "running"

	// StatusCompleted indicates all steps succeeded.
	StatusCompleted Status = "completed"

	// StatusCompensating indicates the run is executing compensations.
	StatusCompensating Status = "compensating"

	// StatusCompensated indicates the run failed and every
	// compensation succeeded.
	StatusCompensated Status = "compensated"

	// StatusFailed indicates the run failed and at least one
	// compensation also failed. These records are the dead-letter
	// view: the rows an operator must reconcile by hand.
	StatusFailed Status = "failed"
)

// Store persists run state.
//
// Implementations must be safe for concurrent use. All engine writes
// through a Store are best-effort; implementations should still return
// errors so they can be logged.
//
// Implementations:
//   - MemoryStore: for tests and single-process setups
//   - RedisStore: see redis.go
//   - MongoStore: see mongodb.go
//   - PostgresStore: see postgres.go
type Store interface {
	// Create records a new run. Returns an error if a run with this
	// ID already exists.
	Create(ctx context.Context, state *State) error

	// Update updates run state. Called after each step.
	Update(ctx context.Context, state *State) error

	// Get retrieves run state by run ID.
	Get(ctx context.Context, runID string) (*State, error)

	// List lists runs matching the filter.
	List(ctx context.Context, filter Filter) ([]*State, error)
}

// Filter specifies criteria for listing runs. All fields are optional;
// an empty filter returns all runs.
//
// Example:
//
//	// Runs whose rollback sweep lost work
//	states, err := store.List(ctx, workflow.Filter{
//	    Status: []workflow.Status{workflow.StatusFailed},
//	})
type Filter struct {
	Name     string   // Filter by workflow name (empty = all)
	TenantID string   // Filter by tenant (empty = all)
	Status   []Status // Filter by status (empty = all)
	Limit    int      // Maximum results (0 = no limit)
}

// MemoryStore is an in-memory run store for tests and single-process
// deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*State
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string]*State),
	}
}

// Create records a new run.
func (s *MemoryStore) Create(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[state.RunID]; exists {
		return fmt.Errorf("run already exists: %s", state.RunID)
	}

	stored := copyState(state)
	s.runs[state.RunID] = stored

	return nil
}

// Update updates run state.
func (s *MemoryStore) Update(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[state.RunID]; !exists {
		return fmt.Errorf("run not found: %s", state.RunID)
	}

	s.runs[state.RunID] = copyState(state)

	return nil
}

// Get retrieves run state by run ID.
func (s *MemoryStore) Get(ctx context.Context, runID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	return copyState(state), nil
}

// List lists runs matching the filter.
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*State

	for _, state := range s.runs {
		if !filter.matches(state) {
			continue
		}

		results = append(results, copyState(state))

		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}

	return results, nil
}

// Cleanup removes finished runs older than the specified age and
// returns how many were deleted.
func (s *MemoryStore) Cleanup(age time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-age)
	deleted := 0

	for id, state := range s.runs {
		if state.CompletedAt != nil && state.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
			deleted++
		}
	}

	return deleted
}

func (f Filter) matches(state *State) bool {
	if f.Name != "" && state.Name != f.Name {
		return false
	}
	if f.TenantID != "" && state.TenantID != f.TenantID {
		return false
	}
	if len(f.Status) > 0 {
		matched := false
		for _, status := range f.Status {
			if state.Status == status {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func copyState(state *State) *State {
	stored := *state
	stored.CompletedSteps = append([]string(nil), state.CompletedSteps...)
	return &stored
}

// Compile-time check
var _ Store = (*MemoryStore)(nil)
