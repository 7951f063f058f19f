package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/aretw0/sketchy/internal/config"
	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/pkg/persistence"
)

// ListRecords writes the keys held by the configured store.
func ListRecords(ctx context.Context, cfg config.Config, w io.Writer) error {
	store, closeStore, err := OpenStore(ctx, cfg.Store, logging.NewNop())
	if err != nil {
		return err
	}
	defer closeStore()

	keys, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "No stored records found.")
		return nil
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintln(w, "- "+k)
	}
	return nil
}

// InspectSession pretty prints the stored workflow record.
func InspectSession(ctx context.Context, cfg config.Config, w io.Writer) error {
	store, closeStore, err := OpenStore(ctx, cfg.Store, logging.NewNop())
	if err != nil {
		return err
	}
	defer closeStore()

	logger := logging.NewWithWriter(w, slog.LevelWarn)
	rec, err := persistence.NewAdapter(store,
		persistence.WithKey(cfg.Store.Key),
		persistence.WithLogger(logger),
	).Load(ctx)
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintln(w, "No stored session.")
		return nil
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// RemoveSession deletes the stored workflow record.
func RemoveSession(ctx context.Context, cfg config.Config, w io.Writer) error {
	store, closeStore, err := OpenStore(ctx, cfg.Store, logging.NewNop())
	if err != nil {
		return err
	}
	defer closeStore()

	if err := persistence.NewAdapter(store, persistence.WithKey(cfg.Store.Key)).Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed session '%s'\n", cfg.Store.Key)
	return nil
}
