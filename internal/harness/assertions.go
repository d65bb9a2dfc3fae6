package harness

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/sandbox"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Seq, event.Op, event.Args, event.Outcome)
		}
	}
	return buf.String()
}

// AssertionContext provides the final engine and sandbox for state assertions.
type AssertionContext struct {
	Engine  *engine.Engine
	Sandbox *sandbox.Server
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertNotice:
			err = assertNotice(result.Trace, assertion)
		case AssertCartLen, AssertOrderCount, AssertOrderStatus, AssertRole, AssertPendingOrder:
			if actx == nil || actx.Engine == nil {
				err = fmt.Errorf("assertion[%d]: %s requires engine context", i, assertion.Type)
			} else {
				err = assertEngineState(actx.Engine.State(), assertion)
			}
		case AssertSandboxOrders, AssertSandboxHits:
			if actx == nil || actx.Sandbox == nil {
				err = fmt.Errorf("assertion[%d]: %s requires sandbox context", i, assertion.Type)
			} else {
				err = assertSandbox(actx.Sandbox, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

// assertTraceContains checks if the trace contains a step with the op and
// matching args (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Op == assertion.Op && matchArgs(event.Args, assertion.Args) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("op %s with args %v", assertion.Op, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if ops appear in the specified order.
// Ops don't need to be consecutive (intervening steps are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// First position of each expected op, 1-indexed for readability
	positions := make(map[string]int)
	for i, event := range trace {
		for _, op := range assertion.Ops {
			if event.Op == op && positions[op] == 0 {
				positions[op] = i + 1
			}
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", assertion.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Ops); i++ {
		prev, curr := assertion.Ops[i-1], assertion.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks if the op appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Op == assertion.Op {
			count++
		}
	}

	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *assertion.Count, assertion.Op),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertNotice checks that some step emitted a notice of the given kind.
func assertNotice(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		for _, n := range event.Notices {
			if string(n.Kind) == assertion.Kind {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertNotice,
		Expected: fmt.Sprintf("a %s notice", assertion.Kind),
		Actual:   "no such notice",
		Trace:    trace,
	}
}

// assertEngineState checks the engine's final state.
func assertEngineState(st engine.State, assertion Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: assertion.Type, Expected: expected, Actual: actual}
	}

	switch assertion.Type {
	case AssertCartLen:
		if len(st.Cart) != *assertion.Count {
			return fail(fmt.Sprintf("%d cart lines", *assertion.Count), fmt.Sprintf("%d cart lines", len(st.Cart)))
		}
	case AssertOrderCount:
		if len(st.Orders) != *assertion.Count {
			return fail(fmt.Sprintf("%d cached orders", *assertion.Count), fmt.Sprintf("%d cached orders", len(st.Orders)))
		}
	case AssertOrderStatus:
		o, ok := st.Order(assertion.Order)
		if !ok {
			return fail(fmt.Sprintf("order %s with status %s", assertion.Order, assertion.Status), "order not in cache")
		}
		if o.Status != assertion.Status {
			return fail(fmt.Sprintf("order %s with status %s", assertion.Order, assertion.Status), fmt.Sprintf("status %s", o.Status))
		}
	case AssertRole:
		if st.Session.Role != assertion.Role {
			return fail(fmt.Sprintf("role %s", assertion.Role), fmt.Sprintf("role %s", st.Session.Role))
		}
	case AssertPendingOrder:
		if got := st.PendingOrder != nil; got != *assertion.Present {
			return fail(fmt.Sprintf("pending order present=%t", *assertion.Present), fmt.Sprintf("present=%t", got))
		}
	}
	return nil
}

// assertSandbox checks what the backend holds or received.
func assertSandbox(sb *sandbox.Server, assertion Assertion) error {
	var got int
	var what string
	switch assertion.Type {
	case AssertSandboxOrders:
		got, what = len(sb.Orders()), "backend orders"
	case AssertSandboxHits:
		got, what = sb.Hits(assertion.Method, assertion.Path), fmt.Sprintf("%s %s requests", assertion.Method, assertion.Path)
	}
	if got != *assertion.Count {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d %s", *assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", got, what),
		}
	}
	return nil
}

// matchArgs checks if actual args contain all expected args (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual, expected map[string]any) bool {
	for key, expectedVal := range expected {
		actualVal, exists := actual[key]
		if !exists || !reflect.DeepEqual(actualVal, expectedVal) {
			return false
		}
	}
	return true
}
