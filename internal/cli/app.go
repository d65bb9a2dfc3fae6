package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/backend"
	"github.com/roach88/tableside/internal/config"
	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/store"
)

// app is the engine wired to its persisted state and the backend for one
// command invocation.
type app struct {
	cfg    config.Config
	store  *store.Store
	client *backend.Client
	engine *engine.Engine
	out    *OutputFormatter
}

// openApp loads configuration, opens the state database and rehydrates the
// engine. Flags override the environment.
func openApp(cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg := config.Load(opts.EnvFile)
	if opts.APIURL != "" {
		cfg.APIURL = opts.APIURL
	}
	if opts.StatePath != "" {
		cfg.StatePath = opts.StatePath
	}

	var storeOpts []store.Option
	if cfg.StateKey != "" {
		key, err := store.ParseKey(cfg.StateKey)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid TABLESIDE_STATE_KEY", err)
		}
		sealer, err := store.NewSealer(key)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid TABLESIDE_STATE_KEY", err)
		}
		storeOpts = append(storeOpts, store.WithSealer(sealer))
	} else {
		slog.Debug("no state key configured, sessions are not persisted")
	}

	st, err := store.Open(cfg.StatePath, storeOpts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open state database", err)
	}

	client := backend.New(cfg.APIURL, backend.WithTimeout(cfg.HTTPTimeout))
	eng := engine.New(commandContext(cmd), st, client)
	out := newFormatter(cmd, opts)
	out.VerboseLog("api=%s state=%s role=%s", cfg.APIURL, cfg.StatePath, eng.Session().Role)

	return &app{
		cfg:    cfg,
		store:  st,
		client: client,
		engine: eng,
		out:    out,
	}, nil
}

// Close releases the state database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Error("error closing state database", "error", err)
	}
}

// withApp runs fn against an opened app and closes it afterwards.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(commandContext(cmd), a)
}

// ok reports data together with any notices the operation raised.
func (a *app) ok(data any) error {
	return a.out.Success(data, a.engine.Notices().Drain()...)
}

// fail reports err together with any notices the operation raised.
func (a *app) fail(err error) error {
	return a.out.Fail(err, a.engine.Notices().Drain()...)
}

// ensureMenu loads the menu when the cache is empty.
func (a *app) ensureMenu(ctx context.Context) error {
	if len(a.engine.Menu()) > 0 {
		return nil
	}
	if _, err := a.engine.FetchMenu(ctx); err != nil {
		return fmt.Errorf("fetch menu: %w", err)
	}
	return nil
}

// commandContext returns the command's context, or Background when the
// command is executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
