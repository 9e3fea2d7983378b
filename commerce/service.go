package commerce

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/commercekit/workflow"
)

// Publisher is the event-publishing capability the emit steps consume.
// It is fire-and-forget with assumed at-least-once delivery; the
// publish subpackage provides NATS, Kafka and in-memory
// implementations.
type Publisher interface {
	Publish(ctx context.Context, name string, tenantID string, payload any) error
}

// Service runs the commerce workflows against a Repository and a
// Publisher.
//
// Example:
//
//	svc := commerce.NewService(repo, publisher).
//	    WithSettings(settings).
//	    WithRunStore(workflow.NewMemoryStore())
//
//	order, err := svc.CreateOrder(ctx, tenantID, input)
type Service struct {
	repo      Repository
	publisher Publisher
	settings  Settings
	logger    *slog.Logger
	validate  *validator.Validate
	runStore  workflow.Store
}

// NewService creates a commerce service with default settings.
func NewService(repo Repository, publisher Publisher) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		settings:  DefaultSettings(),
		logger:    slog.Default().With("component", "commerce"),
		validate:  validator.New(),
	}
}

// WithSettings overrides the default settings.
//
// Returns the service for method chaining.
func (s *Service) WithSettings(settings Settings) *Service {
	s.settings = settings
	return s
}

// WithLogger sets a custom logger.
//
// Returns the service for method chaining.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger.With("component", "commerce")
	return s
}

// WithRunStore records every workflow run in the given store.
//
// Returns the service for method chaining.
func (s *Service) WithRunStore(store workflow.Store) *Service {
	s.runStore = store
	return s
}

// newWorkflow builds a workflow definition wired to the service's
// logger and run store.
func (s *Service) newWorkflow(name string, steps ...workflow.Step) *workflow.Workflow {
	wf := workflow.New(name, steps...).WithLogger(s.logger)
	if s.runStore != nil {
		wf = wf.WithStore(s.runStore)
	}
	return wf
}

// emit publishes an event under the configured prefix. Publishing is
// fire-and-forget; the returned error reflects broker-client
// acceptance only.
func (s *Service) emit(ctx context.Context, name, tenantID string, payload any) error {
	if s.settings.EventPrefix != "" {
		name = s.settings.EventPrefix + "." + name
	}
	return s.publisher.Publish(ctx, name, tenantID, payload)
}

// newOrderNumber generates a human-facing order number.
func (s *Service) newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return s.settings.OrderNumberPrefix + suffix
}
