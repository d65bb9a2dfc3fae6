package views

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/tableside/internal/ir"
)

// Select returns the orders matching p, newest first.
// A nil predicate selects every order. The input is not modified.
func Select(orders []ir.Order, p Predicate) []ir.Order {
	out := make([]ir.Order, 0, len(orders))
	for _, o := range orders {
		if p == nil || p.match(o) {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out
}

// sortNewestFirst orders by creation time descending, then id for a stable result.
func sortNewestFirst(orders []ir.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].CreatedAt != orders[j].CreatedAt {
			return orders[i].CreatedAt > orders[j].CreatedAt
		}
		return orders[i].ID < orders[j].ID
	})
}

// Pending returns orders waiting for the kitchen.
func Pending(orders []ir.Order) []ir.Order {
	return Select(orders, StatusIn{ir.StatusPending})
}

// Preparing returns orders the kitchen is working on.
func Preparing(orders []ir.Order) []ir.Order {
	return Select(orders, StatusIn{ir.StatusPreparing})
}

// Completed returns orders prepared and awaiting payment.
func Completed(orders []ir.Order) []ir.Order {
	return Select(orders, StatusIn{ir.StatusCompleted})
}

// History returns paid orders.
func History(orders []ir.Order) []ir.Order {
	return Select(orders, StatusIn{ir.StatusPaid})
}

// ForCustomer returns every order placed by phone.
func ForCustomer(orders []ir.Order, phone string) []ir.Order {
	return Select(orders, CustomerPhone(phone))
}

// Table returns dine-in orders.
func Table(orders []ir.Order) []ir.Order {
	return Select(orders, HasTable(true))
}

// Parcel returns takeaway orders.
func Parcel(orders []ir.Order) []ir.Order {
	return Select(orders, HasTable(false))
}

// Unrecognized returns orders whose status the pipeline never produces
// (for example "ready" or "served" set by another client). They are shown
// as-is and never advanced.
func Unrecognized(orders []ir.Order) []ir.Order {
	return Select(orders, Not{StatusIn{ir.StatusPending, ir.StatusPreparing, ir.StatusCompleted, ir.StatusPaid}})
}

// View is a dashboard that polls the order cache while it is active.
type View string

const (
	// ViewChef is the kitchen queue: pending and preparing orders.
	ViewChef View = "chef"
	// ViewKitchen is the admin board: every unpaid order.
	ViewKitchen View = "kitchen"
	// ViewCustomer shows the logged-in customer's unpaid orders.
	ViewCustomer View = "customer"
	// ViewHistory shows paid orders.
	ViewHistory View = "history"
)

// AllViews lists the views in display order.
var AllViews = []View{ViewChef, ViewKitchen, ViewCustomer, ViewHistory}

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	for _, v := range AllViews {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown view %q (want one of chef, kitchen, customer, history)", s)
}

// DefaultInterval is the poll cadence for the view.
func (v View) DefaultInterval() time.Duration {
	switch v {
	case ViewCustomer:
		return 15 * time.Second
	case ViewHistory:
		return 30 * time.Second
	default:
		return 10 * time.Second
	}
}

// Predicate returns the filter the view applies. phone is only used by
// ViewCustomer.
func (v View) Predicate(phone string) Predicate {
	switch v {
	case ViewChef:
		return StatusIn{ir.StatusPending, ir.StatusPreparing}
	case ViewKitchen:
		return Not{StatusIn{ir.StatusPaid}}
	case ViewCustomer:
		return And{CustomerPhone(phone), Not{StatusIn{ir.StatusPaid}}}
	case ViewHistory:
		return StatusIn{ir.StatusPaid}
	default:
		return And{}
	}
}

// Project applies the view to orders for the given session.
func (v View) Project(orders []ir.Order, sess ir.Session) []ir.Order {
	return Select(orders, v.Predicate(sess.Phone))
}

// Summary counts orders per status, in pipeline order, plus anything unrecognized.
type Summary struct {
	Pending      int `json:"pending"`
	Preparing    int `json:"preparing"`
	Completed    int `json:"completed"`
	Paid         int `json:"paid"`
	Unrecognized int `json:"unrecognized"`
	Parcel       int `json:"parcel"`
}

// Summarize counts orders by status.
func Summarize(orders []ir.Order) Summary {
	var s Summary
	for _, o := range orders {
		switch o.Status {
		case ir.StatusPending:
			s.Pending++
		case ir.StatusPreparing:
			s.Preparing++
		case ir.StatusCompleted:
			s.Completed++
		case ir.StatusPaid:
			s.Paid++
		default:
			s.Unrecognized++
		}
		if o.IsParcel() {
			s.Parcel++
		}
	}
	return s
}
