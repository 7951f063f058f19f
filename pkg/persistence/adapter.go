package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/ports"
)

// DefaultKey is the storage key of the workflow record.
const DefaultKey = "sketchyState"

// Adapter saves and loads the workflow record.
type Adapter struct {
	store  ports.RecordStore
	key    string
	logger *slog.Logger
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithKey overrides the storage key.
func WithKey(key string) Option {
	return func(a *Adapter) {
		if key != "" {
			a.key = key
		}
	}
}

// WithLogger configures a logger for corruption reports.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// NewAdapter creates an Adapter on top of the given store.
func NewAdapter(store ports.RecordStore, opts ...Option) *Adapter {
	a := &Adapter{
		store:  store,
		key:    DefaultKey,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Key returns the storage key in use.
func (a *Adapter) Key() string {
	return a.key
}

// Save writes the record. Last write wins.
func (a *Adapter) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := a.store.Save(ctx, a.key, data); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Persist snapshots the state and saves it.
func (a *Adapter) Persist(ctx context.Context, s domain.State) error {
	return a.Save(ctx, Snapshot(s))
}

// Load reads the record. It returns nil, nil when nothing is stored or when the
// stored content is unusable; the latter is logged as ErrPersistenceCorrupt.
// Only store failures are returned as errors.
func (a *Adapter) Load(ctx context.Context) (*Record, error) {
	data, err := a.store.Load(ctx, a.key)
	if err != nil {
		if errors.Is(err, ports.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		a.corrupt(err)
		return nil, nil
	}
	if _, err := rec.State(); err != nil {
		a.corrupt(err)
		return nil, nil
	}
	return &rec, nil
}

// Clear removes the stored record.
func (a *Adapter) Clear(ctx context.Context) error {
	if err := a.store.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("failed to clear record: %w", err)
	}
	return nil
}

func (a *Adapter) corrupt(cause error) {
	err := &domain.Error{Kind: domain.KindPersistenceCorrupt, Message: "stored workflow record is unreadable", Err: cause}
	a.logger.Warn("Ignoring stored workflow state", "key", a.key, "error", err, "cause", cause)
}
