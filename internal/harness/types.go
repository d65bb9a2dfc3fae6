package harness

import (
	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
)

// TraceEvent records one executed step and the state it left behind.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Phase   string          `json:"phase"` // "setup" or "flow"
	Op      string          `json:"op"`
	Args    map[string]any  `json:"args,omitempty"`
	Outcome string          `json:"outcome"` // "ok" or an engine error code
	Message string          `json:"message,omitempty"`
	Order   *OrderSummary   `json:"order,omitempty"`
	State   StateSummary    `json:"state"`
	Notices []engine.Notice `json:"notices,omitempty"`
}

// OrderSummary is the part of an order a trace records.
type OrderSummary struct {
	ID      string    `json:"id"`
	Status  ir.Status `json:"status"`
	Total   float64   `json:"total"`
	Lines   int       `json:"lines"`
	TableNo string    `json:"table_no,omitempty"`
}

// StateSummary is the engine state after a step.
type StateSummary struct {
	Role    ir.Role              `json:"role"`
	Table   string               `json:"table,omitempty"`
	Cart    map[string]int       `json:"cart,omitempty"`   // item id -> qty
	Orders  map[string]ir.Status `json:"orders,omitempty"` // order id -> status
	Pending bool                 `json:"pending_order,omitempty"`
}

// Outcome values other than engine error codes.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped" // add_to_cart for an id not in the menu
	OutcomeError   = "error"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func summarizeOrder(o *ir.Order) *OrderSummary {
	if o == nil {
		return nil
	}
	s := &OrderSummary{ID: o.ID, Status: o.Status, Total: o.Total, Lines: len(o.Items)}
	if o.TableNo != nil {
		s.TableNo = *o.TableNo
	}
	return s
}

func summarizeState(st engine.State) StateSummary {
	s := StateSummary{
		Role:    st.Session.Role,
		Table:   st.Table(),
		Pending: st.PendingOrder != nil,
	}
	if len(st.Cart) > 0 {
		s.Cart = make(map[string]int, len(st.Cart))
		for _, it := range st.Cart {
			s.Cart[it.ID] = it.Qty
		}
	}
	if len(st.Orders) > 0 {
		s.Orders = make(map[string]ir.Status, len(st.Orders))
		for _, o := range st.Orders {
			s.Orders[o.ID] = o.Status
		}
	}
	return s
}
