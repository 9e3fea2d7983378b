package workflow

// CompletedStep is one entry in the caller-visible audit log of a run.
// Output is the step's forward result, not its compensation payload.
type CompletedStep struct {
	ID     string
	Output any
}

// Context is the bag of shared state threaded through every step of a
// single run. It carries identity and an audit trail; it is not a
// transaction boundary. Individual steps may perform independent
// commits against Resource.
//
// A Context is created fresh per workflow invocation, passed by
// reference through every step, and discarded afterwards. It has no
// persisted representation.
type Context struct {
	// TenantID scopes every data operation in the run. The engine
	// carries it unmodified; validation belongs to the caller.
	TenantID string

	// Resource is the transactional or session handle the steps need.
	// It is opaque to the engine: ownership and lifecycle belong
	// entirely to the calling workflow function, and step bodies
	// type-assert it to whatever capability they require.
	Resource any

	// CompletedSteps records, in order, each step that finished its
	// forward action. The engine appends to it; callers read it for
	// diagnostics.
	CompletedSteps []CompletedStep

	// Metadata holds optional caller-defined key/value pairs.
	Metadata map[string]string
}

// NewContext creates a Context for one workflow run.
func NewContext(tenantID string, resource any) *Context {
	return &Context{
		TenantID: tenantID,
		Resource: resource,
	}
}
