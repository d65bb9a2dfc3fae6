package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tableside/internal/ir"
)

// Scenario defines an end-to-end scenario.
// Scenarios execute a flow of engine operations against the sandbox and
// assert on the resulting trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sandbox configures the backend before the first step.
	Sandbox SandboxSetup `yaml:"sandbox,omitempty"`

	// Setup contains steps that establish initial state.
	// Every setup step must succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// SandboxSetup seeds the backend.
type SandboxSetup struct {
	// Menu replaces DefaultMenu when non-empty.
	Menu []MenuEntry `yaml:"menu,omitempty"`

	// Orders are placed on the backend as if by other clients.
	Orders []SeedOrder `yaml:"orders,omitempty"`
}

// MenuEntry is one catalog item.
type MenuEntry struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Price    float64 `yaml:"price"`
	Category string  `yaml:"category,omitempty"`
}

// SeedOrder is an order that exists on the backend before the scenario starts.
type SeedOrder struct {
	ID      string     `yaml:"id"`
	Status  ir.Status  `yaml:"status"`
	TableNo string     `yaml:"table_no,omitempty"` // empty for a parcel order
	Phone   string     `yaml:"phone,omitempty"`
	Items   []SeedItem `yaml:"items"`
}

// SeedItem references a menu item by id; name and price come from the menu.
type SeedItem struct {
	Item string `yaml:"item"`
	Qty  int    `yaml:"qty"`
}

// Step is one operation.
type Step struct {
	// Op names the operation (see Ops).
	Op string `yaml:"op"`

	// Args contains the operation arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect checks the outcome. If nil, the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Outcome is "ok" or an engine error code such as "CONFLICT".
	Outcome string `yaml:"outcome"`

	// Status is the expected status of the returned order, if any.
	Status ir.Status `yaml:"status,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type (see the Assert constants).
	Type string `yaml:"type"`

	// Op is the operation name (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Args are the expected op arguments (trace_contains). Subset match.
	Args map[string]any `yaml:"args,omitempty"`

	// Ops is the expected op order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number (trace_count, cart_len, order_count,
	// sandbox_orders, sandbox_hits).
	Count *int `yaml:"count,omitempty"`

	// Order and Status are used by order_status.
	Order  string    `yaml:"order,omitempty"`
	Status ir.Status `yaml:"status,omitempty"`

	// Role is used by role.
	Role ir.Role `yaml:"role,omitempty"`

	// Present is used by pending_order.
	Present *bool `yaml:"present,omitempty"`

	// Method and Path are used by sandbox_hits, e.g. POST /api/orders/.
	Method string `yaml:"method,omitempty"`
	Path   string `yaml:"path,omitempty"`

	// Kind is used by notice.
	Kind string `yaml:"kind,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertCartLen       = "cart_len"
	AssertOrderCount    = "order_count"
	AssertOrderStatus   = "order_status"
	AssertRole          = "role"
	AssertPendingOrder  = "pending_order"
	AssertSandboxOrders = "sandbox_orders"
	AssertSandboxHits   = "sandbox_hits"
	AssertNotice        = "notice"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, o := range s.Sandbox.Orders {
		if o.ID == "" {
			return fmt.Errorf("sandbox.orders[%d]: id is required", i)
		}
		if !o.Status.Known() {
			return fmt.Errorf("sandbox.orders[%d]: unknown status %q", i, o.Status)
		}
		if len(o.Items) == 0 {
			return fmt.Errorf("sandbox.orders[%d]: items are required", i)
		}
	}

	for i, step := range s.Setup {
		if err := validateStep("setup", i, step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep("flow", i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(phase string, index int, step Step) error {
	if step.Op == "" {
		return fmt.Errorf("%s[%d]: op is required", phase, index)
	}
	if _, ok := ops[step.Op]; !ok {
		return fmt.Errorf("%s[%d]: unknown op %q", phase, index, step.Op)
	}
	if step.Expect != nil && step.Expect.Outcome == "" {
		return fmt.Errorf("%s[%d].expect: outcome is required", phase, index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	needCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		return needCount()
	case AssertCartLen, AssertOrderCount, AssertSandboxOrders:
		return needCount()
	case AssertSandboxHits:
		if a.Method == "" || a.Path == "" {
			return fmt.Errorf("assertions[%d]: method and path are required for sandbox_hits", index)
		}
		return needCount()
	case AssertOrderStatus:
		if a.Order == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: order and status are required for order_status", index)
		}
	case AssertRole:
		if !ir.ValidRoles[a.Role] {
			return fmt.Errorf("assertions[%d]: invalid role %q", index, a.Role)
		}
	case AssertPendingOrder:
		if a.Present == nil {
			return fmt.Errorf("assertions[%d]: present is required for pending_order", index)
		}
	case AssertNotice:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for notice", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
