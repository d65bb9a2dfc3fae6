package engine

import (
	"fmt"

	"github.com/roach88/tableside/internal/ir"
)

// Reduce applies one action to s and returns the next state.
//
// Reduce is pure: it never mutates s or any slice reachable from it, and
// performs no I/O. It is the single point where the session invariant is
// enforced: an action that would leave a non-guest without a token, or a
// guest with one, is rejected and s is returned unchanged.
func Reduce(s State, a Action) (State, error) {
	switch a := a.(type) {
	case LoginCustomer:
		if a.Token == "" {
			return s, &Error{Code: ErrCodeAuthRequired, Message: "customer login requires a token"}
		}
		s.Session = ir.Session{Role: ir.RoleCustomer, Phone: a.Phone, Email: a.Email, Token: a.Token}
		s.PendingOrder = nil
		s.Orders = []ir.Order{}

	case LoginStaff:
		if !a.Role.IsStaff() {
			return s, newRoleError("staff login", a.Role, "chef or admin")
		}
		if a.Token == "" {
			return s, &Error{Code: ErrCodeAuthRequired, Message: "staff login requires a token"}
		}
		s.Session = ir.Session{Role: a.Role, Token: a.Token}
		s.PendingOrder = nil
		s.Orders = []ir.Order{}

	case Logout:
		s.Session = ir.GuestSession()
		s.CurrentTable = nil
		s.PendingOrder = nil
		s.Orders = []ir.Order{}

	case AddToCart:
		item, ok := s.MenuItem(a.ItemID)
		if !ok {
			return s, nil
		}
		s.Cart = addItem(s.Cart, item)

	case RemoveFromCart:
		s.Cart = removeItem(s.Cart, a.ItemID)

	case UpdateQty:
		qty := a.Qty
		if qty < 1 {
			qty = 1
		}
		s.Cart = setQty(s.Cart, a.ItemID, qty)

	case DecrementQty:
		i := indexOf(s.Cart, a.ItemID)
		if i < 0 {
			return s, nil
		}
		if s.Cart[i].Qty <= 1 {
			s.Cart = removeItem(s.Cart, a.ItemID)
		} else {
			s.Cart = setQty(s.Cart, a.ItemID, s.Cart[i].Qty-1)
		}

	case ClearCart:
		s.Cart = []ir.CartItem{}

	case RemoveOrdered:
		cart := s.Cart
		for _, it := range a.Items {
			i := indexOf(cart, it.ID)
			if i < 0 {
				continue
			}
			if left := cart[i].Qty - it.Qty; left < 1 {
				cart = removeItem(cart, it.ID)
			} else {
				cart = setQty(cart, it.ID, left)
			}
		}
		if cart == nil {
			cart = []ir.CartItem{}
		}
		s.Cart = cart

	case SelectTable:
		var table *string
		if a.Table != nil {
			table = ir.StringPtr(ir.NormalizeIdentifier(*a.Table))
		}
		s.CurrentTable = table

	case SetMenu:
		menu := make([]ir.MenuItem, 0, len(a.Items))
		for _, it := range a.Items {
			if orderable(it) {
				menu = append(menu, it)
			}
		}
		s.Menu = menu

	case SetOrders:
		if s.Session.Role == ir.RoleGuest {
			s.Orders = []ir.Order{}
			break
		}
		orders := make([]ir.Order, 0, len(a.Orders))
		for _, o := range ir.CloneOrders(a.Orders) {
			if o.ID != "" {
				orders = append(orders, o)
			}
		}
		s.Orders = orders

	case PrependOrder:
		if s.Session.Role == ir.RoleGuest {
			return s, newRoleError("prepend order", s.Session.Role, "a logged-in session")
		}
		if a.Order.ID == "" {
			return s, fmt.Errorf("prepend order: missing id")
		}
		orders := make([]ir.Order, 0, len(s.Orders)+1)
		orders = append(orders, ir.CloneOrders([]ir.Order{a.Order})...)
		for _, o := range s.Orders {
			if o.ID != a.Order.ID {
				orders = append(orders, o)
			}
		}
		s.Orders = orders

	case SetPendingOrder:
		if a.Pending == nil {
			s.PendingOrder = nil
			break
		}
		if s.Session.Role != ir.RoleGuest {
			return s, newRoleError("set pending order", s.Session.Role, string(ir.RoleGuest))
		}
		p := *a.Pending
		p.Items = ir.CloneItems(p.Items)
		if p.Items == nil {
			p.Items = []ir.CartItem{}
		}
		if p.TableNo != nil {
			t := *p.TableNo
			p.TableNo = &t
		}
		s.PendingOrder = &p

	default:
		return s, fmt.Errorf("reduce: unknown action %T", a)
	}
	return s, nil
}

// checkState verifies the State invariants.
func checkState(s State) error {
	if !s.Session.Valid() {
		return fmt.Errorf("invalid session for role %q", s.Session.Role)
	}
	seen := make(map[string]bool, len(s.Cart))
	for _, it := range s.Cart {
		if seen[it.ID] {
			return fmt.Errorf("duplicate cart item %q", it.ID)
		}
		if it.Qty < 1 {
			return fmt.Errorf("cart item %q has qty %d", it.ID, it.Qty)
		}
		seen[it.ID] = true
	}
	if s.PendingOrder != nil && s.Session.Role != ir.RoleGuest {
		return fmt.Errorf("pending order present for role %q", s.Session.Role)
	}
	if len(s.Orders) > 0 && s.Session.Role == ir.RoleGuest {
		return fmt.Errorf("orders cached for guest")
	}
	return nil
}

func indexOf(cart []ir.CartItem, id string) int {
	for i, it := range cart {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func addItem(cart []ir.CartItem, item ir.MenuItem) []ir.CartItem {
	if i := indexOf(cart, item.ID); i >= 0 {
		return setQty(cart, item.ID, cart[i].Qty+1)
	}
	out := make([]ir.CartItem, len(cart), len(cart)+1)
	copy(out, cart)
	return append(out, ir.CartItem{ID: item.ID, Name: item.Name, Price: item.Price, Qty: 1})
}

func removeItem(cart []ir.CartItem, id string) []ir.CartItem {
	out := make([]ir.CartItem, 0, len(cart))
	for _, it := range cart {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

func setQty(cart []ir.CartItem, id string, qty int) []ir.CartItem {
	out := ir.CloneItems(cart)
	if out == nil {
		return []ir.CartItem{}
	}
	if i := indexOf(out, id); i >= 0 {
		out[i].Qty = qty
	}
	return out
}

// orderable reports whether a menu item can enter the cart: it needs an id
// and a non-negative price.
func orderable(it ir.MenuItem) bool {
	return it.ID != "" && it.Price >= 0
}
