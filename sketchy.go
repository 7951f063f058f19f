package sketchy

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/aretw0/sketchy/pkg/recovery"
	"github.com/aretw0/sketchy/pkg/workflow"

	sketchyhttp "github.com/aretw0/sketchy/pkg/adapters/http"
)

// FileHandle is a live reference to a user-supplied image.
type FileHandle = domain.FileHandle

// Client is the high-level entry point for the Sketchy workflow.
// It wires the orchestrator, its backend and the optional persistence.
type Client struct {
	*workflow.Orchestrator

	backend  ports.Backend
	adapter  *persistence.Adapter
	recovery *recovery.Recoverer
	logger   *slog.Logger
}

type settings struct {
	backend   ports.Backend
	store     ports.RecordStore
	key       string
	timeout   time.Duration
	providers workflow.Providers
	hooks     domain.LifecycleHooks
	listeners []workflow.Listener
	logger    *slog.Logger
}

// Option defines a functional option for configuring the Client.
type Option func(*settings)

// WithBackend injects a custom backend, bypassing the HTTP client.
func WithBackend(b ports.Backend) Option {
	return func(s *settings) {
		s.backend = b
	}
}

// WithStore persists every committed state in store and enables Restore.
func WithStore(store ports.RecordStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithKey overrides the storage key of the persisted record.
func WithKey(key string) Option {
	return func(s *settings) {
		s.key = key
	}
}

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithProviders selects the AI providers.
func WithProviders(analyze, regenerate string) Option {
	return func(s *settings) {
		s.providers = workflow.Providers{Analyze: analyze, Regenerate: regenerate}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *settings) {
		s.hooks = hooks
	}
}

// WithListener registers a commit listener.
func WithListener(l workflow.Listener) Option {
	return func(s *settings) {
		s.listeners = append(s.listeners, l)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// New creates a Client talking to the API rooted at baseURL.
// baseURL is ignored when WithBackend is given.
func New(baseURL string, opts ...Option) *Client {
	s := &settings{timeout: 2 * time.Minute}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.backend == nil {
		s.backend = sketchyhttp.New(baseURL,
			sketchyhttp.WithTimeout(s.timeout),
			sketchyhttp.WithLogger(s.logger),
		)
	}

	c := &Client{backend: s.backend, logger: s.logger}
	wopts := []workflow.Option{
		workflow.WithLogger(s.logger),
		workflow.WithProviders(s.providers),
		workflow.WithLifecycleHooks(s.hooks),
	}
	for _, l := range s.listeners {
		wopts = append(wopts, workflow.WithListener(l))
	}
	if s.store != nil {
		c.adapter = persistence.NewAdapter(s.store, persistence.WithKey(s.key), persistence.WithLogger(s.logger))
		c.recovery = recovery.New(c.adapter, recovery.WithLogger(s.logger))
		wopts = append(wopts, workflow.WithPersistence(c.adapter))
	}
	c.Orchestrator = workflow.New(s.backend, wopts...)
	return c
}

// Restore brings back the stored session, asking picker for its files.
// Without a store it is a no-op.
func (c *Client) Restore(ctx context.Context, picker ports.FilePicker) (recovery.Outcome, error) {
	if c.recovery == nil {
		return recovery.Outcome{State: domain.NewState()}, nil
	}
	outcome, err := c.recovery.Resume(ctx, picker)
	if err != nil {
		return outcome, err
	}
	if !outcome.State.IsEmpty() {
		c.Adopt(outcome.State)
	}
	return outcome, nil
}

// Backend returns the backend in use.
func (c *Client) Backend() ports.Backend {
	return c.backend
}
