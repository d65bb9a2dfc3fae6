package engine

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/backend"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/sandbox"
	"github.com/roach88/tableside/internal/store"
)

const (
	testPhone = "9998887776"
	testEmail = "guest@example.com"
	testOTP   = "424242"
)

// fixedNow is the wall clock every test engine runs at.
var fixedNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

func testMenu() []ir.MenuItem {
	return []ir.MenuItem{
		{ID: "m1", Name: "Paneer Tikka", Price: 706, Category: "starters"},
		{ID: "m2", Name: "Masala Dosa", Price: 150, Category: "mains"},
		{ID: "m3", Name: "Mango Lassi", Price: 80.5, Category: "drinks"},
	}
}

// setupTestStore opens a store in a temp dir with token sealing enabled.
func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "state.db"))
}

func openTestStore(t *testing.T, path string) *store.Store {
	t.Helper()
	sealer, err := store.NewSealer(bytes.Repeat([]byte{7}, store.KeySize))
	require.NoError(t, err)
	s, err := store.Open(path, store.WithSealer(sealer))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testEnv is an engine wired to a sandbox backend over HTTP and a real store.
type testEnv struct {
	eng    *Engine
	sb     *sandbox.Server
	client *backend.Client
	store  *store.Store
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	sb := sandbox.New(
		sandbox.WithMenu(testMenu()...),
		sandbox.WithStaff("chef", "chefpw", ir.RoleChef),
		sandbox.WithStaff("admin", "adminpw", ir.RoleAdmin),
		sandbox.WithOTPs(func() string { return testOTP }),
		sandbox.WithNow(func() time.Time { return fixedNow }),
	)
	srv := httptest.NewServer(sb.Handler())
	t.Cleanup(srv.Close)

	client := backend.New(srv.URL + "/api")
	st := setupTestStore(t)
	opts = append([]Option{WithNow(func() time.Time { return fixedNow })}, opts...)
	return &testEnv{
		eng:    New(context.Background(), st, client, opts...),
		sb:     sb,
		client: client,
		store:  st,
	}
}

// withBackend replaces env.eng with an engine on the same store and a different backend.
func (env *testEnv) withBackend(t *testing.T, b Backend, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithNow(func() time.Time { return fixedNow })}, opts...)
	env.eng = New(context.Background(), env.store, b, opts...)
	return env.eng
}

func (env *testEnv) loadMenu(t *testing.T) {
	t.Helper()
	_, err := env.eng.FetchMenu(context.Background())
	require.NoError(t, err)
}

// loginCustomer runs the OTP flow.
func (env *testEnv) loginCustomer(t *testing.T) *ir.Order {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.eng.RequestOTP(ctx, testPhone, testEmail))
	placed, err := env.eng.VerifyOTP(ctx, testPhone, testEmail, testOTP)
	require.NoError(t, err)
	return placed
}

func (env *testEnv) loginStaff(t *testing.T, role ir.Role) {
	t.Helper()
	user, pw := "chef", "chefpw"
	if role == ir.RoleAdmin {
		user, pw = "admin", "adminpw"
	}
	require.NoError(t, env.eng.StaffLogin(context.Background(), role, user, pw))
}

// seedOrder stores an order on the backend as if another client placed it.
func (env *testEnv) seedOrder(id string, status ir.Status, table string) ir.Order {
	items := []ir.CartItem{{ID: "m2", Name: "Masala Dosa", Price: 150, Qty: 2}}
	o := ir.Order{
		ID:        id,
		Items:     items,
		Total:     ir.OrderTotal(items),
		Status:    status,
		Customer:  ir.Customer{Phone: testPhone, Email: testEmail},
		TableNo:   ir.StringPtr(table),
		CreatedAt: fixedNow.UnixMilli(),
	}
	env.sb.AddOrder(o)
	return o
}

// countingStore counts snapshot writes.
type countingStore struct {
	Persister
	mu    sync.Mutex
	saves int
}

func (c *countingStore) Save(ctx context.Context, snap store.Snapshot) error {
	c.mu.Lock()
	c.saves++
	c.mu.Unlock()
	return c.Persister.Save(ctx, snap)
}

func (c *countingStore) Saves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves
}

// gatedBackend holds ListOrders calls until released, so tests can
// control the order in which responses arrive.
type gatedBackend struct {
	Backend
	mu    sync.Mutex
	gates []chan struct{}
	calls chan int
}

func newGatedBackend(b Backend) *gatedBackend {
	return &gatedBackend{Backend: b, calls: make(chan int, 16)}
}

func (g *gatedBackend) ListOrders(ctx context.Context, token string) ([]ir.Order, error) {
	g.mu.Lock()
	gate := make(chan struct{})
	g.gates = append(g.gates, gate)
	n := len(g.gates) - 1
	g.mu.Unlock()

	orders, err := g.Backend.ListOrders(ctx, token)
	g.calls <- n
	<-gate
	return orders, err
}

// release lets call n return.
func (g *gatedBackend) release(n int) {
	g.mu.Lock()
	gate := g.gates[n]
	g.mu.Unlock()
	close(gate)
}

// waitCall blocks until some call has reached its gate and returns its index.
func (g *gatedBackend) waitCall(t *testing.T) int {
	t.Helper()
	select {
	case n := <-g.calls:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("ListOrders was not called")
		return -1
	}
}

func orderIDs(orders []ir.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	return ids
}
