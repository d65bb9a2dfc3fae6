// Package harness runs end-to-end scenarios against the engine.
//
// Each scenario drives a real engine, backed by a fresh in-memory store,
// against an in-process sandbox backend served over HTTP. Every step is
// recorded in a trace that can be compared with a golden file, and the
// final state is checked with assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	sandbox:
//	  orders:
//	    - id: o1
//	      status: pending
//	      table_no: T1
//	      items: [{ item: m2, qty: 2 }]
//	setup:
//	  - op: fetch_menu
//	flow:
//	  - op: add_to_cart
//	    args: { item: m1 }
//	  - op: checkout
//	    expect:
//	      outcome: AUTH_REQUIRED
//	assertions:
//	  - type: cart_len
//	    count: 1
//	  - type: pending_order
//	    present: true
//
// Setup steps must succeed. A flow step without an expect clause must
// succeed too; with one, its outcome ("ok" or an engine error code) is
// checked.
//
// # Assertion Types
//
//   - trace_contains: an op appears in the trace with matching args
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - cart_len: number of cart lines
//   - order_count: number of cached orders
//   - order_status: a cached order has the given status
//   - role: the session role
//   - pending_order: whether a pending order is held
//   - sandbox_orders: number of orders the backend holds
//   - sandbox_hits: requests the backend received for a method and path
//   - notice: a notice of the given kind was emitted
//
// # Deterministic Testing
//
// Order and capture ids come from testutil.SequentialIDs, and the engine
// and sandbox share a testutil.FixedClock that only moves on an
// advance_clock step. The same scenario therefore produces a byte-identical
// trace on every run, suitable for golden comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/dine_in_order.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
