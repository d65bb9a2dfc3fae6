package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/tableside/internal/harness"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/sandbox"
)

// SandboxOptions holds flags for the sandbox command.
type SandboxOptions struct {
	*RootOptions
	Addr  string
	Menu  string
	Staff []string
	OTP   string
}

// NewSandboxCommand creates the sandbox command.
func NewSandboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SandboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sandbox",
		Short: "Serve an in-memory backend for local use",
		Long: `Serve an in-memory implementation of the restaurant API under /api.

Orders live in memory and are lost on exit. Issued OTPs are logged.
Without --staff the accounts chef/chefpw (chef) and admin/adminpw (admin)
are created.

Examples:
  tableside sandbox --addr 127.0.0.1:8000
  tableside sandbox --menu menu.yaml --staff anna:secret:admin --otp 111111

Menu file format:
  - id: m1
    name: Paneer Tikka
    price: 706
    category: starters`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().StringVar(&opts.Menu, "menu", "", "YAML menu file (default: built-in demo menu)")
	cmd.Flags().StringArrayVar(&opts.Staff, "staff", nil, "staff account as user:password:role (repeatable)")
	cmd.Flags().StringVar(&opts.OTP, "otp", "", "issue this fixed OTP instead of random codes")

	return cmd
}

func runSandbox(cmd *cobra.Command, opts *SandboxOptions) error {
	sbOpts, err := sandboxOptions(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid sandbox configuration", err)
	}
	sb := sandbox.New(sbOpts...)

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:           sb.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	slog.Info("sandbox started", "addr", ln.Addr().String())
	fmt.Fprintf(cmd.OutOrStdout(), "Sandbox listening on http://%s/api\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "sandbox error", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "sandbox shutdown", err)
	}
	slog.Info("sandbox stopped gracefully")
	return nil
}

func sandboxOptions(opts *SandboxOptions) ([]sandbox.Option, error) {
	menu := harness.DefaultMenu()
	if opts.Menu != "" {
		var err error
		menu, err = loadMenuFile(opts.Menu)
		if err != nil {
			return nil, err
		}
	}
	sbOpts := []sandbox.Option{sandbox.WithMenu(menu...)}

	if len(opts.Staff) == 0 {
		for role, cred := range harness.DefaultStaff {
			sbOpts = append(sbOpts, sandbox.WithStaff(cred[0], cred[1], role))
		}
	}
	for _, spec := range opts.Staff {
		user, pass, role, err := parseStaffSpec(spec)
		if err != nil {
			return nil, err
		}
		sbOpts = append(sbOpts, sandbox.WithStaff(user, pass, role))
	}

	if opts.OTP != "" {
		code := opts.OTP
		sbOpts = append(sbOpts, sandbox.WithOTPs(func() string { return code }))
	}
	return sbOpts, nil
}

// loadMenuFile reads a YAML list of menu items.
func loadMenuFile(path string) ([]ir.MenuItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	var menu []ir.MenuItem
	if err := yaml.Unmarshal(data, &menu); err != nil {
		return nil, fmt.Errorf("parse menu file: %w", err)
	}
	seen := make(map[string]bool, len(menu))
	for i, m := range menu {
		if m.ID == "" || m.Name == "" || m.Price < 0 {
			return nil, fmt.Errorf("menu[%d]: id, name and a non-negative price are required", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("menu[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
	}
	return menu, nil
}

// parseStaffSpec parses "user:password:role".
func parseStaffSpec(spec string) (string, string, ir.Role, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", "", "", fmt.Errorf("invalid staff %q: want user:password:role", spec)
	}
	role := ir.Role(parts[2])
	if !role.IsStaff() {
		return "", "", "", fmt.Errorf("invalid staff %q: role must be chef or admin", spec)
	}
	return parts[0], parts[1], role, nil
}
