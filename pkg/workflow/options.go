package workflow

import (
	"log/slog"

	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
)

const (
	DefaultAnalyzeProvider    = "openai"
	DefaultRegenerateProvider = "stabilityai"
)

// Providers selects the AI provider of each remote step.
type Providers struct {
	Analyze    string
	Regenerate string
}

// Listener is notified after every commit with the new state and what changed.
type Listener func(state domain.State, changes domain.Changes)

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithPersistence saves every committed state through the adapter.
func WithPersistence(adapter *persistence.Adapter) Option {
	return func(o *Orchestrator) {
		o.persist = adapter
	}
}

// WithState sets the initial state, typically the outcome of a recovery.
func WithState(state domain.State) Option {
	return func(o *Orchestrator) {
		o.state = state
	}
}

// WithListener registers a commit listener.
func WithListener(l Listener) Option {
	return func(o *Orchestrator) {
		o.listeners = append(o.listeners, l)
	}
}

// WithProviders overrides the default providers. Empty fields keep the default.
func WithProviders(p Providers) Option {
	return func(o *Orchestrator) {
		if p.Analyze != "" {
			o.providers.Analyze = p.Analyze
		}
		if p.Regenerate != "" {
			o.providers.Regenerate = p.Regenerate
		}
	}
}

// WithLifecycleHooks configures step observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *Orchestrator) {
		o.hooks = hooks
	}
}
