package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tableside/internal/backend"
	"github.com/roach88/tableside/internal/ir"
)

// Checkout turns the cart into an order at the current table.
//
// A guest's cart and table are captured as the pending order and
// ErrCodeAuthRequired is returned: the caller should run the OTP flow,
// after which the capture is replayed once. A customer's order is placed
// directly (see CreateOrderFromCart).
func (e *Engine) Checkout(ctx context.Context) (*ir.Order, error) {
	st := e.State()
	if len(st.Cart) == 0 {
		return nil, &Error{Code: ErrCodeEmptyCart, Message: "cart is empty"}
	}
	if st.CurrentTable == nil {
		return nil, &Error{Code: ErrCodeTableRequired, Message: msgTableRequired}
	}

	switch st.Session.Role {
	case ir.RoleGuest:
		if err := e.CapturePendingOrder(ctx); err != nil {
			return nil, err
		}
		return nil, &Error{Code: ErrCodeAuthRequired, Message: msgLoginToCheckout}
	case ir.RoleCustomer:
		return e.CreateOrderFromCart(ctx)
	default:
		return nil, newRoleError("checkout", st.Session.Role, "guest or customer")
	}
}

// CreateOrderFromCart places the cart as a new order for the logged-in customer.
//
// The total is computed once from the cart and never recomputed. The order
// is added to the cache only after the backend confirms it, and the submitted
// lines leave the cart only then; anything added while the request was in
// flight stays. On failure nothing local changes; a 401/403 also logs the
// session out.
func (e *Engine) CreateOrderFromCart(ctx context.Context) (*ir.Order, error) {
	st := e.State()
	if st.Session.Role != ir.RoleCustomer {
		return nil, newRoleError("create order from cart", st.Session.Role, string(ir.RoleCustomer))
	}
	if len(st.Cart) == 0 {
		return nil, &Error{Code: ErrCodeEmptyCart, Message: "cart is empty"}
	}

	customer := ir.Customer{Phone: st.Session.Phone, Email: st.Session.Email}
	return e.placeOrder(ctx, st.Session.Token, st.Cart, st.CurrentTable, customer, true)
}

// CreateStaffOrder places an order on behalf of a walk-in or parcel customer.
// table == nil creates a parcel order. Chef and admin sessions only.
func (e *Engine) CreateStaffOrder(ctx context.Context, items []ir.CartItem, table *string, customer ir.Customer) (*ir.Order, error) {
	sess := e.Session()
	if !sess.Role.IsStaff() {
		return nil, newRoleError("create staff order", sess.Role, "chef or admin")
	}
	items, err := normalizeItems(items)
	if err != nil {
		return nil, err
	}
	if table != nil {
		table = ir.StringPtr(ir.NormalizeIdentifier(*table))
	}
	customer = ir.Customer{Phone: ir.NormalizePhone(customer.Phone), Email: ir.NormalizeEmail(customer.Email)}
	return e.placeOrder(ctx, sess.Token, items, table, customer, false)
}

// placeOrder builds the order, submits it, and commits it on success.
func (e *Engine) placeOrder(ctx context.Context, token string, items []ir.CartItem, table *string, customer ir.Customer, fromCart bool) (*ir.Order, error) {
	order := ir.Order{
		ID:        e.ids.Generate(),
		Items:     ir.CloneItems(items),
		Total:     ir.OrderTotal(items),
		Status:    ir.StatusPending,
		Customer:  customer,
		TableNo:   table,
		CreatedAt: e.now().UnixMilli(),
	}

	created, err := e.client.CreateOrder(ctx, token, order)
	if err != nil {
		return nil, e.fail(ctx, "create order", err, order.ID)
	}

	actions := []Action{PrependOrder{Order: created}}
	if fromCart {
		actions = append(actions, RemoveOrdered{Items: order.Items})
	}
	if _, err := e.dispatch(ctx, actions...); err != nil {
		// The session changed while the request was in flight.
		return nil, fmt.Errorf("commit order %s: %w", created.ID, err)
	}

	slog.Info("order created", "order_id", created.ID, "total", created.Total, "items", len(created.Items))
	e.notices.Push(Notice{Kind: NoticeOrderPlaced, Message: "Order placed.", OrderID: created.ID})
	return &created, nil
}

// MarkPreparing moves an order from pending to preparing.
func (e *Engine) MarkPreparing(ctx context.Context, id string) error {
	return e.advance(ctx, id, ir.StatusPreparing)
}

// MarkPrepared moves an order from preparing to completed.
func (e *Engine) MarkPrepared(ctx context.Context, id string) error {
	return e.advance(ctx, id, ir.StatusCompleted)
}

// MarkPaid moves an order from completed to paid.
func (e *Engine) MarkPaid(ctx context.Context, id string) error {
	return e.advance(ctx, id, ir.StatusPaid)
}

// Advance moves an order one step forward from its cached status.
func (e *Engine) Advance(ctx context.Context, id string) (ir.Status, error) {
	o, ok := e.State().Order(id)
	if !ok {
		return "", &Error{Code: ErrCodeUnknownOrder, Message: "order not in cache", OrderID: id}
	}
	next, ok := o.Status.Next()
	if !ok {
		return "", &Error{Code: ErrCodeInvalidTransition, Message: fmt.Sprintf("no status follows %q", o.Status), OrderID: id}
	}
	return next, e.advance(ctx, id, next)
}

// advance PATCHes one forward status step and then refetches every order.
// The cached status is never changed locally.
func (e *Engine) advance(ctx context.Context, id string, to ir.Status) error {
	st := e.State()
	if !ir.CanSet(st.Session.Role, to) {
		return newRoleError(fmt.Sprintf("set status %q", to), st.Session.Role, "a permitted role")
	}
	o, ok := st.Order(id)
	if !ok {
		return &Error{Code: ErrCodeUnknownOrder, Message: "order not in cache", OrderID: id}
	}
	if !ir.CanTransition(o.Status, to) {
		return &Error{
			Code:    ErrCodeInvalidTransition,
			Message: fmt.Sprintf("cannot move from %q to %q", o.Status, to),
			OrderID: id,
		}
	}

	if _, err := e.client.PatchOrder(ctx, st.Session.Token, id, backend.StatusPatch(to)); err != nil {
		return e.fail(ctx, "set status", err, id)
	}
	slog.Info("order status advanced", "order_id", id, "from", o.Status, "to", to)
	return e.FetchOrders(ctx)
}

// UpdateOrderTable moves an order to another table; nil makes it a parcel.
// Admin only.
func (e *Engine) UpdateOrderTable(ctx context.Context, id string, table *string) error {
	if table != nil {
		table = ir.StringPtr(ir.NormalizeIdentifier(*table))
	}
	return e.edit(ctx, id, backend.TablePatch(table))
}

// UpdateOrderItems replaces an order's items. Admin only.
func (e *Engine) UpdateOrderItems(ctx context.Context, id string, items []ir.CartItem) error {
	items, err := normalizeItems(items)
	if err != nil {
		return err
	}
	return e.edit(ctx, id, backend.ItemsPatch(items))
}

func (e *Engine) edit(ctx context.Context, id string, patch backend.OrderPatch) error {
	st := e.State()
	if st.Session.Role != ir.RoleAdmin {
		return newRoleError("edit order "+patch.Field(), st.Session.Role, string(ir.RoleAdmin))
	}
	if _, ok := st.Order(id); !ok {
		return &Error{Code: ErrCodeUnknownOrder, Message: "order not in cache", OrderID: id}
	}

	if _, err := e.client.PatchOrder(ctx, st.Session.Token, id, patch); err != nil {
		return e.fail(ctx, "edit order", err, id)
	}
	slog.Info("order edited", "order_id", id, "field", patch.Field())
	return e.FetchOrders(ctx)
}

// normalizeItems validates explicit line items and merges duplicate ids.
func normalizeItems(items []ir.CartItem) ([]ir.CartItem, error) {
	if len(items) == 0 {
		return nil, &Error{Code: ErrCodeEmptyCart, Message: "order has no items"}
	}
	out := make([]ir.CartItem, 0, len(items))
	for _, it := range items {
		it.ID = ir.NormalizeIdentifier(it.ID)
		if it.ID == "" || it.Qty < 1 || it.Price < 0 {
			return nil, &Error{Code: ErrCodeValidation, Message: fmt.Sprintf("invalid item %q (qty %d, price %v)", it.ID, it.Qty, it.Price)}
		}
		if i := indexOf(out, it.ID); i >= 0 {
			out[i].Qty += it.Qty
			continue
		}
		out = append(out, it)
	}
	return out, nil
}
