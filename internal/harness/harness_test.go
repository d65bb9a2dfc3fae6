package harness

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
)

func TestRun_Scenarios(t *testing.T) {
	paths, err := FindScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, p := range paths {
		name := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(p)
			require.NoError(t, err)

			result, err := Run(context.Background(), scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(scenario.Setup)+len(scenario.Flow))
		})
	}
}

func TestRun_SetupFailure(t *testing.T) {
	scenario := &Scenario{
		Name:        "setup_failure",
		Description: "checkout with an empty cart cannot succeed",
		Setup:       []Step{{Op: "checkout"}},
		Flow:        []Step{{Op: "fetch_menu"}},
		Assertions:  []Assertion{{Type: AssertRole, Role: ir.RoleGuest}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (checkout)")
}

func TestRun_UnexpectedOutcomeFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_outcome",
		Description: "a failing step without an expect clause fails the scenario",
		Flow: []Step{
			{Op: "select_table", Args: map[string]any{"table": "T1"}},
			{Op: "checkout"},
		},
		Assertions: []Assertion{{Type: AssertRole, Role: ir.RoleGuest}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[1] checkout: expected outcome ok, got EMPTY_CART")
}

func TestRun_ExpectStatusMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "expect_status",
		Description: "expect.status compares against the returned order",
		Sandbox: SandboxSetup{Orders: []SeedOrder{
			{ID: "o1", Status: ir.StatusPending, TableNo: "T1", Items: []SeedItem{{Item: "m1", Qty: 1}}},
		}},
		Setup: []Step{{Op: "staff_login", Args: map[string]any{"role": "chef"}}},
		Flow: []Step{
			{Op: "mark_preparing", Args: map[string]any{"order": "o1"}, Expect: &Expect{Outcome: OutcomeOK, Status: ir.StatusCompleted}},
		},
		Assertions: []Assertion{{Type: AssertOrderStatus, Order: "o1", Status: ir.StatusPreparing}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected status completed, got preparing")
}

func TestRun_UnknownMenuItemSkipped(t *testing.T) {
	scenario := &Scenario{
		Name:        "skipped_item",
		Description: "adding an id that is not on the menu is a no-op",
		Setup:       []Step{{Op: "fetch_menu"}},
		Flow: []Step{
			{Op: "add_to_cart", Args: map[string]any{"item": "m404"}, Expect: &Expect{Outcome: OutcomeSkipped}},
		},
		Assertions: []Assertion{{Type: AssertCartLen, Count: intPtr(0)}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_SeedOrderUnknownItem(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_seed",
		Description: "seed orders must reference menu items",
		Sandbox: SandboxSetup{Orders: []SeedOrder{
			{ID: "o1", Status: ir.StatusPending, Items: []SeedItem{{Item: "m404", Qty: 1}}},
		}},
		Flow:       []Step{{Op: "fetch_menu"}},
		Assertions: []Assertion{{Type: AssertRole, Role: ir.RoleGuest}},
	}

	_, err := Run(context.Background(), scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown menu item "m404"`)
}

func TestRun_CustomMenu(t *testing.T) {
	scenario := &Scenario{
		Name:        "custom_menu",
		Description: "a scenario menu replaces the default one",
		Sandbox: SandboxSetup{Menu: []MenuEntry{
			{ID: "c1", Name: "Chai", Price: 30},
		}},
		Flow: []Step{
			{Op: "fetch_menu"},
			{Op: "add_to_cart", Args: map[string]any{"item": "c1"}},
			{Op: "add_to_cart", Args: map[string]any{"item": "m1"}, Expect: &Expect{Outcome: OutcomeSkipped}},
		},
		Assertions: []Assertion{{Type: AssertCartLen, Count: intPtr(1)}},
	}

	result, err := Run(context.Background(), scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	scenario := &Scenario{
		Name:        "logged",
		Description: "steps are logged when a logger is given",
		Flow:        []Step{{Op: "fetch_menu"}},
		Assertions:  []Assertion{{Type: AssertRole, Role: ir.RoleGuest}},
	}

	result, err := Run(context.Background(), scenario, WithLogger(logger))
	require.NoError(t, err)
	assert.True(t, result.Pass)
	assert.Contains(t, buf.String(), "step completed")
	assert.Contains(t, buf.String(), "op=fetch_menu")
}
