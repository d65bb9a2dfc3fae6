package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/views"
)

// StaffLoginOptions holds flags for the staff login command.
type StaffLoginOptions struct {
	*RootOptions
	Role     string
	Username string
	Password string
}

// NewStaffCommand creates the staff command.
func NewStaffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Kitchen and billing staff sessions",
	}
	cmd.AddCommand(newStaffLoginCommand(rootOpts))
	return cmd
}

func newStaffLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StaffLoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in as chef or admin",
		Long: `Log in with staff credentials under the chef or admin role.

Example:
  tableside staff login --role chef --username chef --password secret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.engine.StaffLogin(ctx, ir.Role(opts.Role), opts.Username, opts.Password); err != nil {
					return a.fail(err)
				}
				return a.ok(newSessionView(a.engine.Session()))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Role, "role", string(ir.RoleChef), "staff role (chef|admin)")
	cmd.Flags().StringVar(&opts.Username, "username", "", "staff username (required)")
	cmd.Flags().StringVar(&opts.Password, "password", "", "staff password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "logout",
		Short:         "End the session; the cart and menu are kept",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.engine.Logout(ctx); err != nil {
					return a.fail(err)
				}
				return a.ok(message("Logged out."))
			})
		},
	}
}

// OrdersOptions holds flags for the orders command.
type OrdersOptions struct {
	*RootOptions
	View string
}

// NewOrdersCommand creates the orders command.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Refresh and show orders",
		Long: `Refresh the order cache and show one view of it.

Views:
  chef      pending and preparing orders
  kitchen   everything not yet paid
  customer  the logged-in customer's unpaid orders
  history   paid orders

The default view follows the session: customer for customers, chef for
chefs and kitchen for admins.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				v, err := resolveView(opts.View, a.engine.Session().Role)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid view", err)
				}
				if err := refreshForView(ctx, a.engine, v); err != nil {
					return a.fail(err)
				}
				orders := v.Project(a.engine.Orders(), a.engine.Session())
				return a.ok(newOrderList(v, orders))
			})
		},
	}

	cmd.Flags().StringVar(&opts.View, "view", "", "view to show (chef|kitchen|customer|history)")
	return cmd
}

// resolveView parses name, or picks the view that fits role when name is empty.
func resolveView(name string, role ir.Role) (views.View, error) {
	if name != "" {
		return views.ParseView(name)
	}
	switch role {
	case ir.RoleCustomer:
		return views.ViewCustomer, nil
	case ir.RoleChef:
		return views.ViewChef, nil
	case ir.RoleAdmin:
		return views.ViewKitchen, nil
	default:
		return "", fmt.Errorf("log in to see orders")
	}
}

// refreshForView fetches the list a view is projected from. Customers read
// all of their own orders, paid included, since views share one cached list
// and filter it locally. Staff read the full list.
func refreshForView(ctx context.Context, eng *engine.Engine, v views.View) error {
	if eng.Session().Role == ir.RoleCustomer {
		return eng.FetchCurrentOrders(ctx, true)
	}
	return eng.FetchOrders(ctx)
}

// pollerForView returns a poller refreshing the list a view is projected from.
func pollerForView(eng *engine.Engine, v views.View, interval time.Duration) *engine.Poller {
	if eng.Session().Role == ir.RoleCustomer {
		return eng.NewCurrentOrderPoller(string(v), interval, true)
	}
	return eng.NewOrderPoller(string(v), interval)
}

// AdvanceOptions holds flags for the advance command.
type AdvanceOptions struct {
	*RootOptions
	To string
}

// NewAdvanceCommand creates the advance command.
func NewAdvanceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AdvanceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "advance <order-id>",
		Short: "Move an order one status forward",
		Long: `Move an order one step along pending, preparing, completed, paid.

The order list is refreshed first. Without --to the next status follows
the refreshed order's status; with --to the target must be that next
status. Chefs may set preparing and completed, only admins may set paid.

Examples:
  tableside advance 0193a8e2-7c4e-7000-8000-000000000001
  tableside advance 0193a8e2-7c4e-7000-8000-000000000001 --to paid`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				id := args[0]
				if err := a.engine.FetchOrders(ctx); err != nil {
					return a.fail(err)
				}
				if err := advanceOrder(ctx, a.engine, id, ir.Status(opts.To)); err != nil {
					return a.fail(err)
				}
				o, _ := a.engine.State().Order(id)
				return a.ok(orderView(o))
			})
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "target status (preparing|completed|paid)")
	return cmd
}

func advanceOrder(ctx context.Context, eng *engine.Engine, id string, to ir.Status) error {
	switch to {
	case "":
		_, err := eng.Advance(ctx, id)
		return err
	case ir.StatusPreparing:
		return eng.MarkPreparing(ctx, id)
	case ir.StatusCompleted:
		return eng.MarkPrepared(ctx, id)
	case ir.StatusPaid:
		return eng.MarkPaid(ctx, id)
	default:
		return &engine.Error{Code: engine.ErrCodeInvalidTransition, Message: fmt.Sprintf("cannot target status %q", to), OrderID: id}
	}
}

// ParcelOptions holds flags for the parcel command.
type ParcelOptions struct {
	*RootOptions
	Items []string
	Table string
	Phone string
	Email string
}

// NewParcelCommand creates the parcel command.
func NewParcelCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParcelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parcel",
		Short: "Place an order on behalf of a walk-in or takeaway customer",
		Long: `Place an order as staff. Without --table the order is a parcel.

Items are menu ids with an optional quantity; repeated ids are merged.

Example:
  tableside parcel --item m1=2 --item m3 --phone 1112223334`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.ensureMenu(ctx); err != nil {
					return a.fail(err)
				}
				items, err := resolveItems(a.engine.Menu(), opts.Items)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid items", err)
				}
				customer := ir.Customer{Phone: opts.Phone, Email: opts.Email}
				order, err := a.engine.CreateStaffOrder(ctx, items, ir.StringPtr(opts.Table), customer)
				if err != nil {
					return a.fail(err)
				}
				return a.ok(orderView(*order))
			})
		},
	}

	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "menu item as id or id=qty (repeatable)")
	cmd.Flags().StringVar(&opts.Table, "table", "", "table number (omit for a parcel)")
	cmd.Flags().StringVar(&opts.Phone, "phone", "", "customer phone number")
	cmd.Flags().StringVar(&opts.Email, "email", "", "customer email address")
	_ = cmd.MarkFlagRequired("item")

	return cmd
}

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	Table  string
	Parcel bool
	Items  []string
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <order-id>",
		Short: "Change an order's table or items (admin)",
		Long: `Change an order's table or replace its items. Admin only.

Examples:
  tableside edit <order-id> --table T9
  tableside edit <order-id> --parcel
  tableside edit <order-id> --item m1=1 --item m2=2`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			editTable := opts.Table != "" || opts.Parcel
			if editTable == (len(opts.Items) > 0) {
				return NewExitError(ExitCommandError, "give exactly one of --table, --parcel or --item")
			}
			if opts.Table != "" && opts.Parcel {
				return NewExitError(ExitCommandError, "--table and --parcel are mutually exclusive")
			}

			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				if err := a.engine.FetchOrders(ctx); err != nil {
					return a.fail(err)
				}

				var err error
				if editTable {
					err = a.engine.UpdateOrderTable(ctx, id, ir.StringPtr(opts.Table))
				} else {
					if err := a.ensureMenu(ctx); err != nil {
						return a.fail(err)
					}
					items, resolveErr := resolveItems(a.engine.Menu(), opts.Items)
					if resolveErr != nil {
						return WrapExitError(ExitCommandError, "invalid items", resolveErr)
					}
					err = a.engine.UpdateOrderItems(ctx, id, items)
				}
				if err != nil {
					return a.fail(err)
				}
				o, _ := a.engine.State().Order(id)
				return a.ok(orderView(o))
			})
		},
	}

	cmd.Flags().StringVar(&opts.Table, "table", "", "move the order to this table")
	cmd.Flags().BoolVar(&opts.Parcel, "parcel", false, "detach the order from its table")
	cmd.Flags().StringArrayVar(&opts.Items, "item", nil, "replacement item as id or id=qty (repeatable)")

	return cmd
}
