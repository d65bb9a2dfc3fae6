package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/roach88/tableside/internal/ir"
)

// errNotAdded marks an add_to_cart for an id missing from the cached menu.
var errNotAdded = errors.New("item not in menu")

// opFunc executes one step. It returns the order the operation produced
// or touched, if any.
type opFunc func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error)

// ops maps step names to engine operations and sandbox controls.
var ops = map[string]opFunc{
	// Menu and cart
	"fetch_menu": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		_, err := h.engine.FetchMenu(ctx)
		return nil, err
	},
	"add_to_cart": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		added, err := h.engine.AddToCart(ctx, argString(args, "item", ""))
		if err == nil && !added {
			err = errNotAdded
		}
		return nil, err
	},
	"remove_from_cart": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.RemoveFromCart(ctx, argString(args, "item", ""))
	},
	"update_qty": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.UpdateQty(ctx, argString(args, "item", ""), argInt(args, "qty", 1))
	},
	"decrement_qty": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.DecrementQty(ctx, argString(args, "item", ""))
	},
	"clear_cart": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return nil, h.engine.ClearCart(ctx)
	},
	"select_table": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.SelectTable(ctx, argString(args, "table", ""))
	},

	// Ordering
	"checkout": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return h.engine.Checkout(ctx)
	},
	"create_order": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return h.engine.CreateOrderFromCart(ctx)
	},
	"capture_pending": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return nil, h.engine.CapturePendingOrder(ctx)
	},
	"staff_order": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		items, err := h.argItems(args)
		if err != nil {
			return nil, err
		}
		customer := ir.Customer{Phone: argString(args, "phone", ""), Email: argString(args, "email", "")}
		return h.engine.CreateStaffOrder(ctx, items, ir.StringPtr(argString(args, "table", "")), customer)
	},

	// Session
	"request_otp": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.RequestOTP(ctx, argString(args, "phone", DefaultPhone), argString(args, "email", DefaultEmail))
	},
	"verify_otp": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		email := argString(args, "email", DefaultEmail)
		otp := argString(args, "otp", "")
		if otp == "" {
			otp, _ = h.sandbox.OTP(ir.NormalizeEmail(email))
		}
		return h.engine.VerifyOTP(ctx, argString(args, "phone", DefaultPhone), email, otp)
	},
	"staff_login": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		role := ir.Role(argString(args, "role", string(ir.RoleChef)))
		cred := DefaultStaff[role]
		return nil, h.engine.StaffLogin(ctx, role,
			argString(args, "username", cred[0]),
			argString(args, "password", cred[1]))
	},
	"logout": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return nil, h.engine.Logout(ctx)
	},
	"restart": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		h.restart(ctx)
		return nil, nil
	},

	// Order cache and transitions
	"fetch_orders": func(ctx context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		return nil, h.engine.FetchOrders(ctx)
	},
	"fetch_current_orders": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		return nil, h.engine.FetchCurrentOrders(ctx, argBool(args, "include_paid"))
	},
	"mark_preparing": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		err := h.engine.MarkPreparing(ctx, id)
		return h.cachedOrder(id), err
	},
	"mark_prepared": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		err := h.engine.MarkPrepared(ctx, id)
		return h.cachedOrder(id), err
	},
	"mark_paid": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		err := h.engine.MarkPaid(ctx, id)
		return h.cachedOrder(id), err
	},
	"advance": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		_, err := h.engine.Advance(ctx, id)
		return h.cachedOrder(id), err
	},
	"update_table": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		err := h.engine.UpdateOrderTable(ctx, id, ir.StringPtr(argString(args, "table", "")))
		return h.cachedOrder(id), err
	},
	"update_items": func(ctx context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		items, err := h.argItems(args)
		if err != nil {
			return nil, err
		}
		err = h.engine.UpdateOrderItems(ctx, id, items)
		return h.cachedOrder(id), err
	},

	// Sandbox and clock controls
	"advance_clock": func(_ context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		d, err := time.ParseDuration(argString(args, "by", ""))
		if err != nil {
			return nil, fmt.Errorf("advance_clock: %w", err)
		}
		h.clock.Advance(d)
		return nil, nil
	},
	"backend_set_status": func(_ context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		id := argString(args, "order", "")
		if !h.sandbox.SetStatus(id, ir.Status(argString(args, "status", ""))) {
			return nil, fmt.Errorf("backend_set_status: no order %q", id)
		}
		return nil, nil
	},
	"backend_fail": func(_ context.Context, h *Harness, args map[string]any) (*ir.Order, error) {
		h.sandbox.FailNext(
			argString(args, "method", "POST"),
			argString(args, "path", "/orders/"),
			argInt(args, "status", 500),
			argString(args, "message", ""),
		)
		return nil, nil
	},
	"backend_expire_sessions": func(_ context.Context, h *Harness, _ map[string]any) (*ir.Order, error) {
		h.sandbox.ExpireSessions()
		return nil, nil
	},
}

// Ops returns the names of every supported step op, sorted.
func Ops() []string {
	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// cachedOrder returns a copy of the order as the engine currently caches it.
func (h *Harness) cachedOrder(id string) *ir.Order {
	o, ok := h.engine.State().Order(id)
	if !ok {
		return nil
	}
	return &o
}

// argItems resolves [{item, qty}] against the menu.
func (h *Harness) argItems(args map[string]any) ([]ir.CartItem, error) {
	raw, _ := args["items"].([]any)
	items := make([]ir.CartItem, 0, len(raw))
	for i, r := range raw {
		entry, ok := r.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("items[%d]: expected a mapping", i)
		}
		id := argString(entry, "item", "")
		m, ok := h.menuItem(id)
		if !ok {
			return nil, fmt.Errorf("items[%d]: unknown menu item %q", i, id)
		}
		items = append(items, ir.CartItem{ID: m.ID, Name: m.Name, Price: m.Price, Qty: argInt(entry, "qty", 1)})
	}
	return items, nil
}

func argString(args map[string]any, key, fallback string) string {
	switch v := args[key].(type) {
	case string:
		return v
	case int:
		return fmt.Sprint(v)
	case nil:
		return fallback
	default:
		return fmt.Sprint(v)
	}
}

func argInt(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
