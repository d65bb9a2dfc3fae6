package engine

import "github.com/roach88/tableside/internal/ir"

// Action is one typed mutation of State. Every state change the engine
// makes goes through Reduce with one of the types below.
type Action interface {
	// Kind names the action in logs and traces.
	Kind() string
}

// LoginCustomer sets the customer session. Any pending order is detached.
type LoginCustomer struct {
	Phone string
	Email string
	Token string
}

// LoginStaff sets a chef or admin session.
type LoginStaff struct {
	Role  ir.Role
	Token string
}

// Logout resets the session to guest. The cart survives; the table,
// the pending order, and the order cache do not.
type Logout struct{}

// AddToCart adds one unit of a menu item. Unknown ids are ignored.
type AddToCart struct {
	ItemID string
}

// RemoveFromCart deletes a line. Absent ids are ignored.
type RemoveFromCart struct {
	ItemID string
}

// UpdateQty sets a line's quantity, clamped to at least 1.
type UpdateQty struct {
	ItemID string
	Qty    int
}

// DecrementQty lowers a line's quantity by one, removing it at zero.
type DecrementQty struct {
	ItemID string
}

// ClearCart empties the cart.
type ClearCart struct{}

// RemoveOrdered takes submitted lines out of the cart. Each line's qty is
// subtracted from the matching cart line, which is removed at zero. Lines
// added after the submission stay.
type RemoveOrdered struct {
	Items []ir.CartItem
}

// SelectTable sets the current table; nil clears it.
type SelectTable struct {
	Table *string
}

// SetMenu replaces the catalog.
type SetMenu struct {
	Items []ir.MenuItem
}

// SetOrders replaces the order cache (last write wins).
type SetOrders struct {
	Orders []ir.Order
}

// PrependOrder adds a confirmed order to the front of the cache.
type PrependOrder struct {
	Order ir.Order
}

// SetPendingOrder stores or clears the pre-authentication capture.
type SetPendingOrder struct {
	Pending *ir.PendingOrder
}

func (LoginCustomer) Kind() string   { return "login_customer" }
func (LoginStaff) Kind() string      { return "login_staff" }
func (Logout) Kind() string          { return "logout" }
func (AddToCart) Kind() string       { return "add_to_cart" }
func (RemoveFromCart) Kind() string  { return "remove_from_cart" }
func (UpdateQty) Kind() string       { return "update_qty" }
func (DecrementQty) Kind() string    { return "decrement_qty" }
func (ClearCart) Kind() string       { return "clear_cart" }
func (RemoveOrdered) Kind() string   { return "remove_ordered" }
func (SelectTable) Kind() string     { return "select_table" }
func (SetMenu) Kind() string         { return "set_menu" }
func (SetOrders) Kind() string       { return "set_orders" }
func (PrependOrder) Kind() string    { return "prepend_order" }
func (SetPendingOrder) Kind() string { return "set_pending_order" }
