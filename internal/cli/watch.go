package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/views"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Views    []string
	Duration time.Duration
}

// errSessionEnded stops a watch whose session was logged out, for example
// after the backend rejected the token.
var errSessionEnded = errors.New("session ended")

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep order views refreshed until interrupted",
		Long: `Poll the backend for each view and print it after every refresh.

Each view polls at its own interval (TABLESIDE_POLL_CHEF, _KITCHEN,
_CUSTOMER, _HISTORY). Polling stops on Ctrl-C, after --duration, or when
the session ends.

Examples:
  tableside watch
  tableside watch --view chef --view history
  tableside watch --view kitchen --duration 5m --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				return runWatch(ctx, a, opts)
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Views, "view", nil, "view to watch (chef|kitchen|customer|history, repeatable)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 0, "stop after this long (0 runs until interrupted)")

	return cmd
}

func runWatch(ctx context.Context, a *app, opts *WatchOptions) error {
	sess := a.engine.Session()
	if sess.Role == ir.RoleGuest {
		return a.fail(&engine.Error{Code: engine.ErrCodeAuthRequired, Message: "log in to watch orders"})
	}

	watched, err := watchedViews(opts.Views, sess.Role)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid view", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	tick := time.Duration(0)
	for _, v := range watched {
		interval := a.cfg.PollInterval(v)
		if tick == 0 || interval < tick {
			tick = interval
		}
		p := pollerForView(a.engine, v, interval)
		g.Go(func() error {
			return p.Run(gctx)
		})
	}
	g.Go(func() error {
		return renderLoop(gctx, a, watched, tick)
	})

	slog.Debug("watch started", "views", watched)
	err = g.Wait()
	slog.Debug("watch stopped", "error", err)

	switch {
	case errors.Is(err, errSessionEnded):
		return a.fail(&engine.Error{Code: engine.ErrCodeAuthExpired, Message: "Session ended."})
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	default:
		return err
	}
}

// renderLoop prints every watched view once per tick until ctx is done or
// the session is logged out.
func renderLoop(ctx context.Context, a *app, watched []views.View, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		sess := a.engine.Session()
		if sess.Role == ir.RoleGuest {
			return errSessionEnded
		}
		orders := a.engine.Orders()
		for _, v := range watched {
			if err := a.ok(newOrderList(v, v.Project(orders, sess))); err != nil {
				return err
			}
		}
	}
}

// watchedViews parses names, defaulting to the view that fits role.
func watchedViews(names []string, role ir.Role) ([]views.View, error) {
	if len(names) == 0 {
		v, err := resolveView("", role)
		if err != nil {
			return nil, err
		}
		return []views.View{v}, nil
	}
	out := make([]views.View, 0, len(names))
	seen := make(map[views.View]bool, len(names))
	for _, name := range names {
		v, err := views.ParseView(name)
		if err != nil {
			return nil, err
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out, nil
}
