package engine

import (
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/store"
)

// State is the whole client-side state container.
//
// A State value is never mutated after it is published: reducers build a
// new value, copying any slice they change. Readers may therefore hold a
// State returned by Engine.State indefinitely.
//
// INVARIANTS:
//   - Session.Valid()
//   - Cart ids are unique and every Qty >= 1
//   - PendingOrder != nil only while Session.Role == RoleGuest
//   - Orders is empty while Session.Role == RoleGuest
type State struct {
	// Revision increments once per dispatch.
	Revision int64

	Session      ir.Session
	Cart         []ir.CartItem
	Orders       []ir.Order
	Menu         []ir.MenuItem
	CurrentTable *string
	PendingOrder *ir.PendingOrder
}

// DefaultState returns the empty guest state.
func DefaultState() State {
	return stateFromSnapshot(store.DefaultSnapshot())
}

// MenuItem looks up a catalog entry by id.
func (s State) MenuItem(id string) (ir.MenuItem, bool) {
	for _, m := range s.Menu {
		if m.ID == id {
			return m, true
		}
	}
	return ir.MenuItem{}, false
}

// Order looks up a cached order by id.
func (s State) Order(id string) (ir.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return ir.Order{}, false
}

// CartTotal is the total the cart would be ordered at.
func (s State) CartTotal() float64 {
	return ir.OrderTotal(s.Cart)
}

// Table returns the selected table, or "" when none is selected.
func (s State) Table() string {
	if s.CurrentTable == nil {
		return ""
	}
	return *s.CurrentTable
}

func (s State) toSnapshot() store.Snapshot {
	return store.Snapshot{
		Version:      ir.SnapshotVersion,
		User:         s.Session,
		Cart:         s.Cart,
		Orders:       s.Orders,
		Menu:         s.Menu,
		CurrentTable: s.CurrentTable,
		PendingOrder: s.PendingOrder,
		Revision:     s.Revision,
	}
}

func stateFromSnapshot(snap store.Snapshot) State {
	st := State{
		Revision:     snap.Revision,
		Session:      snap.User,
		Cart:         snap.Cart,
		Orders:       snap.Orders,
		Menu:         snap.Menu,
		CurrentTable: snap.CurrentTable,
		PendingOrder: snap.PendingOrder,
	}
	if st.Session.Role == ir.RoleGuest {
		st.Orders = []ir.Order{}
	}
	if st.Cart == nil {
		st.Cart = []ir.CartItem{}
	}
	if st.Orders == nil {
		st.Orders = []ir.Order{}
	}
	if st.Menu == nil {
		st.Menu = []ir.MenuItem{}
	}
	return st
}
