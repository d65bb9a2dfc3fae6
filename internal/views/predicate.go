package views

import "github.com/roach88/tableside/internal/ir"

// Predicate filters orders.
//
// This is a sealed interface: only types in this package implement it,
// so projections stay pure and exhaustively known.
//
// Predicate types:
//   - StatusIn: status is one of the listed statuses
//   - CustomerPhone: placed by the given phone number
//   - HasTable: dine-in (true) or parcel (false)
//   - And: all predicates must match
//   - Not: the predicate must not match
type Predicate interface {
	match(o ir.Order) bool
}

// StatusIn matches orders whose status is one of the listed statuses.
type StatusIn []ir.Status

func (p StatusIn) match(o ir.Order) bool {
	for _, s := range p {
		if o.Status == s {
			return true
		}
	}
	return false
}

// CustomerPhone matches orders placed by a phone number.
// The phone is normalized before comparison.
type CustomerPhone string

func (p CustomerPhone) match(o ir.Order) bool {
	phone := ir.NormalizePhone(string(p))
	return phone != "" && ir.NormalizePhone(o.Customer.Phone) == phone
}

// HasTable matches dine-in orders when true and parcel orders when false.
type HasTable bool

func (p HasTable) match(o ir.Order) bool {
	return !o.IsParcel() == bool(p)
}

// And matches when every predicate matches. An empty And matches everything.
type And []Predicate

func (p And) match(o ir.Order) bool {
	for _, q := range p {
		if q != nil && !q.match(o) {
			return false
		}
	}
	return true
}

// Not inverts a predicate.
type Not struct{ P Predicate }

func (p Not) match(o ir.Order) bool {
	return p.P == nil || !p.P.match(o)
}
