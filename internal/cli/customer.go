package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
)

// NewMenuCommand creates the menu command.
func NewMenuCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Fetch and show the menu",
		Long: `Fetch the menu from the backend and cache it locally.

If the fetch fails the cached menu is emptied.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				menu, err := a.engine.FetchMenu(ctx)
				if err != nil {
					return a.fail(err)
				}
				return a.ok(menuList(menu))
			})
		},
	}
}

// NewTableCommand creates the table command.
func NewTableCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "table [table-no]",
		Short: "Select the table the cart is ordered for",
		Long: `Select the table the cart will be ordered for, or show the current one.

Example:
  tableside table T4`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if len(args) == 1 {
					if err := a.engine.SelectTable(ctx, args[0]); err != nil {
						return a.fail(err)
					}
				}
				return a.ok(newCartView(a.engine.State()))
			})
		},
	}
}

// NewCartCommand creates the cart command and its subcommands.
func NewCartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show or edit the cart",
		Long: `Show or edit the local cart.

Examples:
  tableside cart
  tableside cart add m1
  tableside cart qty m1 3
  tableside cart dec m1
  tableside cart remove m1
  tableside cart clear`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCart(cmd, rootOpts)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Show the cart",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showCart(cmd, rootOpts)
		},
	})

	cmd.AddCommand(cartCommand(rootOpts, "add <item-id>", "Add one of a menu item", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			if err := a.ensureMenu(ctx); err != nil {
				return err
			}
			added, err := a.engine.AddToCart(ctx, args[0])
			if err != nil {
				return err
			}
			if !added {
				return &engine.Error{Code: engine.ErrCodeValidation, Message: fmt.Sprintf("item %q is not on the menu", args[0])}
			}
			return nil
		}))

	cmd.AddCommand(cartCommand(rootOpts, "remove <item-id>", "Remove a line from the cart", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			return a.engine.RemoveFromCart(ctx, args[0])
		}))

	cmd.AddCommand(cartCommand(rootOpts, "qty <item-id> <qty>", "Set a line's quantity (at least 1)", cobra.ExactArgs(2),
		func(ctx context.Context, a *app, args []string) error {
			qty, err := strconv.Atoi(args[1])
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid quantity %q", args[1]))
			}
			return a.engine.UpdateQty(ctx, args[0], qty)
		}))

	cmd.AddCommand(cartCommand(rootOpts, "dec <item-id>", "Decrement a line, removing it at zero", cobra.ExactArgs(1),
		func(ctx context.Context, a *app, args []string) error {
			return a.engine.DecrementQty(ctx, args[0])
		}))

	cmd.AddCommand(cartCommand(rootOpts, "clear", "Empty the cart", cobra.NoArgs,
		func(ctx context.Context, a *app, args []string) error {
			return a.engine.ClearCart(ctx)
		}))

	return cmd
}

func showCart(cmd *cobra.Command, opts *RootOptions) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		return a.ok(newCartView(a.engine.State()))
	})
}

// cartCommand builds a cart subcommand that runs op and then shows the cart.
func cartCommand(opts *RootOptions, use, short string, args cobra.PositionalArgs, op func(context.Context, *app, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          args,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := op(ctx, a, args); err != nil {
					var exitErr *ExitError
					if errors.As(err, &exitErr) {
						return err
					}
					return a.fail(err)
				}
				return a.ok(newCartView(a.engine.State()))
			})
		},
	}
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place the cart as an order",
		Long: `Place the cart as an order for the selected table.

A guest's cart is kept as a pending order and placed automatically once
the phone is verified with "tableside otp verify".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				order, err := a.engine.Checkout(ctx)
				if err != nil {
					return a.fail(err)
				}
				return a.ok(orderView(*order))
			})
		},
	}
}

// OTPOptions holds flags for the otp commands.
type OTPOptions struct {
	*RootOptions
	Phone string
	Email string
}

// NewOTPCommand creates the otp command with request and verify subcommands.
func NewOTPCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OTPOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "otp",
		Short: "Customer phone verification",
		Long: `Request a one-time code and verify it to log in as a customer.

Examples:
  tableside otp request --phone 9998887776 --email guest@example.com
  tableside otp verify 424242 --phone 9998887776 --email guest@example.com`,
	}
	cmd.PersistentFlags().StringVar(&opts.Phone, "phone", "", "customer phone number")
	cmd.PersistentFlags().StringVar(&opts.Email, "email", "", "customer email address")

	cmd.AddCommand(&cobra.Command{
		Use:           "request",
		Short:         "Send a one-time code",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.engine.RequestOTP(ctx, opts.Phone, opts.Email); err != nil {
					return a.fail(err)
				}
				return a.ok(message(fmt.Sprintf("Code sent to %s.", ir.NormalizeEmail(opts.Email))))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "verify <code>",
		Short:         "Verify the code and log in",
		Long:          "Verify the code and log in. A pending guest order is placed once.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				order, err := a.engine.VerifyOTP(ctx, opts.Phone, opts.Email, args[0])
				if err != nil {
					return a.fail(err)
				}
				result := loginResult{Session: newSessionView(a.engine.Session())}
				if order != nil {
					o := orderView(*order)
					result.Order = &o
				}
				return a.ok(result)
			})
		},
	})

	return cmd
}

type loginResult struct {
	Session sessionView `json:"session"`
	Order   *orderView  `json:"order,omitempty"`
}

func (r loginResult) String() string {
	if r.Order == nil {
		return r.Session.String()
	}
	return r.Session.String() + "\n" + r.Order.String()
}
