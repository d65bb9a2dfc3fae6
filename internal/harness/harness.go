package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/roach88/tableside/internal/backend"
	"github.com/roach88/tableside/internal/engine"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/sandbox"
	"github.com/roach88/tableside/internal/store"
	"github.com/roach88/tableside/internal/testutil"
)

// Defaults used when a step omits an argument.
const (
	DefaultPhone = "9998887776"
	DefaultEmail = "guest@example.com"
	DefaultOTP   = "424242"
)

// DefaultStart is the wall-clock time every scenario starts at.
var DefaultStart = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

// DefaultMenu is served when a scenario does not define its own.
func DefaultMenu() []ir.MenuItem {
	return []ir.MenuItem{
		{ID: "m1", Name: "Paneer Tikka", Price: 706, Category: "starters"},
		{ID: "m2", Name: "Masala Dosa", Price: 150, Category: "mains"},
		{ID: "m3", Name: "Mango Lassi", Price: 80.5, Category: "drinks"},
	}
}

// DefaultStaff maps each staff role to its sandbox credentials.
var DefaultStaff = map[ir.Role][2]string{
	ir.RoleChef:  {"chef", "chefpw"},
	ir.RoleAdmin: {"admin", "adminpw"},
}

// Harness is the scenario execution engine.
// It wires an engine to a sandbox with a deterministic clock and ids.
type Harness struct {
	store   *store.Store
	sandbox *sandbox.Server
	server  *httptest.Server
	client  *backend.Client
	engine  *engine.Engine
	clock   *testutil.FixedClock
	ids     *testutil.SequentialIDs
	menu    []ir.MenuItem
	seq     int64
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger for step progress. Steps are not logged by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory store and a fresh sandbox
// for isolation. Execution flow:
//  1. Seed the sandbox (menu, existing orders)
//  2. Execute setup steps (each must succeed)
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions against the trace and final state
//
// An error is returned only when the scenario cannot be executed; failed
// expectations and assertions are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := newHarness(ctx, scenario, opts...)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	result := NewResult()
	for i, step := range scenario.Setup {
		ev := h.execute(ctx, "setup", step)
		result.Trace = append(result.Trace, ev)
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup step %d (%s): %s %s", i, step.Op, ev.Outcome, ev.Message)
		}
	}

	for i, step := range scenario.Flow {
		ev := h.execute(ctx, "flow", step)
		result.Trace = append(result.Trace, ev)
		for _, msg := range checkExpect(i, step, ev) {
			result.AddError(msg)
		}
	}

	actx := &AssertionContext{Engine: h.engine, Sandbox: h.sandbox}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(ctx context.Context, scenario *Scenario, opts ...Option) (*Harness, error) {
	h := &Harness{
		clock:  testutil.NewFixedClock(DefaultStart),
		ids:    testutil.NewSequentialIDs("order"),
		menu:   DefaultMenu(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	if len(scenario.Sandbox.Menu) > 0 {
		h.menu = make([]ir.MenuItem, len(scenario.Sandbox.Menu))
		for i, m := range scenario.Sandbox.Menu {
			h.menu[i] = ir.MenuItem{ID: m.ID, Name: m.Name, Price: m.Price, Category: m.Category}
		}
	}

	sbOpts := []sandbox.Option{
		sandbox.WithMenu(h.menu...),
		sandbox.WithNow(h.clock.Now),
		sandbox.WithIDs(testutil.NewSequentialIDs("srv").Generate),
		sandbox.WithOTPs(func() string { return DefaultOTP }),
	}
	for role, cred := range DefaultStaff {
		sbOpts = append(sbOpts, sandbox.WithStaff(cred[0], cred[1], role))
	}
	h.sandbox = sandbox.New(sbOpts...)

	for _, seed := range scenario.Sandbox.Orders {
		o, err := h.seedOrder(seed)
		if err != nil {
			return nil, err
		}
		h.sandbox.AddOrder(o)
	}

	h.server = httptest.NewServer(h.sandbox.Handler())
	h.client = backend.New(h.server.URL + "/api")

	sealer, err := store.NewSealer(bytes.Repeat([]byte{0x42}, store.KeySize))
	if err != nil {
		h.Close()
		return nil, err
	}
	h.store, err = store.Open(":memory:", store.WithSealer(sealer))
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}

	h.restart(ctx)
	return h, nil
}

// restart builds a new engine on the same store, as a relaunched app would.
func (h *Harness) restart(ctx context.Context) {
	h.engine = engine.New(ctx, h.store, h.client,
		engine.WithIDGenerator(h.ids),
		engine.WithNow(h.clock.Now),
	)
}

// Close releases the sandbox server and the store.
func (h *Harness) Close() {
	if h.server != nil {
		h.server.Close()
	}
	if h.store != nil {
		h.store.Close()
	}
}

func (h *Harness) seedOrder(seed SeedOrder) (ir.Order, error) {
	items := make([]ir.CartItem, 0, len(seed.Items))
	for _, it := range seed.Items {
		m, ok := h.menuItem(it.Item)
		if !ok {
			return ir.Order{}, fmt.Errorf("seed order %s: unknown menu item %q", seed.ID, it.Item)
		}
		items = append(items, ir.CartItem{ID: m.ID, Name: m.Name, Price: m.Price, Qty: it.Qty})
	}
	phone := seed.Phone
	if phone == "" {
		phone = DefaultPhone
	}
	return ir.Order{
		ID:        seed.ID,
		Items:     items,
		Total:     ir.OrderTotal(items),
		Status:    seed.Status,
		Customer:  ir.Customer{Phone: phone},
		TableNo:   ir.StringPtr(seed.TableNo),
		CreatedAt: h.clock.Now().UnixMilli(),
	}, nil
}

func (h *Harness) menuItem(id string) (ir.MenuItem, bool) {
	for _, m := range h.menu {
		if m.ID == id {
			return m, true
		}
	}
	return ir.MenuItem{}, false
}

// execute runs one step and records it.
func (h *Harness) execute(ctx context.Context, phase string, step Step) TraceEvent {
	h.seq++
	args := step.Args
	if args == nil {
		args = map[string]any{}
	}

	order, err := ops[step.Op](ctx, h, args)

	ev := TraceEvent{
		Seq:     h.seq,
		Phase:   phase,
		Op:      step.Op,
		Args:    step.Args,
		Outcome: outcomeOf(err),
		Order:   summarizeOrder(order),
		State:   summarizeState(h.engine.State()),
		Notices: h.engine.Notices().Drain(),
	}
	if err != nil {
		ev.Message = messageOf(err)
	}
	if len(ev.Notices) == 0 {
		ev.Notices = nil
	}

	h.logger.Info("step completed",
		"seq", ev.Seq,
		"phase", phase,
		"op", step.Op,
		"outcome", ev.Outcome,
	)
	return ev
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, errNotAdded):
		return OutcomeSkipped
	case engine.CodeOf(err) != "":
		return string(engine.CodeOf(err))
	default:
		return OutcomeError
	}
}

func messageOf(err error) string {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return ee.Message
	}
	return err.Error()
}

// checkExpect validates a flow step's outcome.
func checkExpect(index int, step Step, ev TraceEvent) []string {
	want := OutcomeOK
	if step.Expect != nil {
		want = step.Expect.Outcome
	}

	var errs []string
	if ev.Outcome != want {
		msg := fmt.Sprintf("flow[%d] %s: expected outcome %s, got %s", index, step.Op, want, ev.Outcome)
		if ev.Message != "" {
			msg += " (" + ev.Message + ")"
		}
		errs = append(errs, msg)
	}
	if step.Expect != nil && step.Expect.Status != "" {
		switch {
		case ev.Order == nil:
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected order with status %s, got no order", index, step.Op, step.Expect.Status))
		case ev.Order.Status != step.Expect.Status:
			errs = append(errs, fmt.Sprintf("flow[%d] %s: expected status %s, got %s", index, step.Op, step.Expect.Status, ev.Order.Status))
		}
	}
	return errs
}
