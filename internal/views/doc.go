// Package views computes the read-only projections dashboards show.
//
// Every projection is a pure function of an order list: nothing here holds
// or mutates state. Callers pass engine.State().Orders (or Engine.Orders())
// and get a new slice back, sorted newest first.
//
// Projections are built from sealed predicates:
//
//	Select(orders, And{StatusIn{ir.StatusPending}, HasTable{}})
//
// and each dashboard View names its projection and its default poll interval.
package views
