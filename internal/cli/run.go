package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/sketchy/internal/config"
	"github.com/aretw0/sketchy/internal/metrics"
	"github.com/aretw0/sketchy/internal/presentation/tui"
	"github.com/aretw0/sketchy/pkg/adapters/dialog"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
	"github.com/aretw0/sketchy/pkg/recovery"
	"github.com/aretw0/sketchy/pkg/workflow"

	sketchyhttp "github.com/aretw0/sketchy/pkg/adapters/http"
)

// RunOptions contains the configuration of the 'run' command.
type RunOptions struct {
	Config  config.Config
	Debug   bool
	Dialog  bool // use the native file dialog for session recovery
	Fresh   bool // discard any stored session first
	Version string

	In  io.Reader
	Out io.Writer
}

// Run starts the interactive workflow shell.
func Run(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	logger, err := NewLogger(cfg.Log, opts.Debug)
	if err != nil {
		return err
	}

	store, closeStore, err := OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(logger, closeStore)

	adapter := persistence.NewAdapter(store,
		persistence.WithKey(cfg.Store.Key),
		persistence.WithLogger(logger),
	)

	client := sketchyhttp.New(cfg.API.BaseURL,
		sketchyhttp.WithTimeout(cfg.API.Timeout),
		sketchyhttp.WithLogger(logger),
	)

	hooks := debugHooks(logger)
	if cfg.Metrics.Addr != "" {
		collector := metrics.NewCollector("sketchy")
		hooks = chainHooks(hooks, collector.Hooks())
		stop, err := serveMetrics(cfg.Metrics.Addr, collector, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	orch := workflow.New(client,
		workflow.WithLogger(logger),
		workflow.WithPersistence(adapter),
		workflow.WithProviders(workflow.Providers{
			Analyze:    cfg.Providers.Analyze,
			Regenerate: cfg.Providers.Regenerate,
		}),
		workflow.WithLifecycleHooks(hooks),
		workflow.WithListener(func(state domain.State, changes domain.Changes) {
			logger.Debug("State committed",
				"session", changes.Session,
				"selection", changes.Selection,
				"analysis", changes.Analysis,
				"prompt", changes.Prompt,
				"regeneration", changes.Regeneration,
				"chain", changes.Chain,
			)
		}),
	)

	shellOpts := ShellOptions{In: opts.In, Out: opts.Out, Logger: logger}
	if opts.Dialog {
		shellOpts.Picker = dialog.New(dialog.WithLogger(logger))
	}
	shell := NewShell(orch, shellOpts)

	if tui.IsTerminal(shell.out) {
		tui.PrintBanner(shell.out, opts.Version)
	}
	shell.printf("Backend: %s\n", client.BaseURL())

	if opts.Fresh {
		orch.Reset(ctx)
	} else if err := shell.Recover(ctx, recovery.New(adapter, recovery.WithLogger(logger))); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}

	return shell.Run(ctx)
}

func debugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepStart: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step request sent", "step", e.Step)
		},
		OnStepFinish: func(ctx context.Context, e *domain.StepEvent) {
			logger.Debug("Step request settled", "step", e.Step, "outcome", e.Outcome(), "duration", e.Duration)
		},
	}
}

// chainHooks calls a then b for every event.
func chainHooks(a, b domain.LifecycleHooks) domain.LifecycleHooks {
	join := func(x, y func(context.Context, *domain.StepEvent)) func(context.Context, *domain.StepEvent) {
		return func(ctx context.Context, e *domain.StepEvent) {
			if x != nil {
				x(ctx, e)
			}
			if y != nil {
				y(ctx, e)
			}
		}
	}
	return domain.LifecycleHooks{
		OnStepStart:  join(a.OnStepStart, b.OnStepStart),
		OnStepFinish: join(a.OnStepFinish, b.OnStepFinish),
	}
}
