package ir

// Status is an order's position in the kitchen/billing pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
	StatusPaid      Status = "paid"
)

// Statuses some dashboards read but the pipeline never produces.
// They may arrive from the backend and are kept as-is, never targeted.
const (
	StatusReady        Status = "ready"
	StatusServed       Status = "served"
	StatusCustomerPaid Status = "customer_paid"
)

// pipeline lists the produced statuses in order.
var pipeline = []Status{StatusPending, StatusPreparing, StatusCompleted, StatusPaid}

// rank returns the position of s in the pipeline, or -1 if s is not produced by it.
func (s Status) rank() int {
	for i, p := range pipeline {
		if p == s {
			return i
		}
	}
	return -1
}

// Known reports whether s is one of the pipeline statuses.
func (s Status) Known() bool {
	return s.rank() >= 0
}

// Next returns the status that follows s, and false if s is terminal or unknown.
func (s Status) Next() (Status, bool) {
	r := s.rank()
	if r < 0 || r == len(pipeline)-1 {
		return "", false
	}
	return pipeline[r+1], true
}

// Before reports whether s comes strictly earlier in the pipeline than other.
// Unknown statuses are never ordered.
func (s Status) Before(other Status) bool {
	a, b := s.rank(), other.rank()
	return a >= 0 && b >= 0 && a < b
}

// transitionRoles maps a target status to the roles allowed to set it.
var transitionRoles = map[Status][]Role{
	StatusPending:   {RoleCustomer, RoleChef, RoleAdmin},
	StatusPreparing: {RoleChef, RoleAdmin},
	StatusCompleted: {RoleChef, RoleAdmin},
	StatusPaid:      {RoleAdmin},
}

// CanSet reports whether role may move an order into status to.
func CanSet(role Role, to Status) bool {
	for _, r := range transitionRoles[to] {
		if r == role {
			return true
		}
	}
	return false
}

// CanTransition reports whether from -> to is a single forward step.
func CanTransition(from, to Status) bool {
	next, ok := from.Next()
	return ok && next == to
}
