package engine

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
)

func TestFetchOrders_GuestSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("o1", ir.StatusPending, "T1")

	require.NoError(t, env.eng.FetchOrders(context.Background()))
	assert.Empty(t, env.eng.Orders())
	assert.Equal(t, 0, env.sb.Hits(http.MethodGet, "/api/orders/"))
}

func TestFetchOrders_LastWriteWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)
	require.Equal(t, []string{"o1"}, orderIDs(env.eng.Orders()))

	env.seedOrder("o2", ir.StatusPending, "T2")
	env.sb.DeleteOrder("o1")
	require.NoError(t, env.eng.FetchOrders(ctx))
	assert.Equal(t, []string{"o2"}, orderIDs(env.eng.Orders()), "deletions are reflected on refresh")
}

func TestFetchOrders_AuthExpiredForcesLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleAdmin)
	require.NotEmpty(t, env.eng.Orders())

	env.sb.ExpireSessions()
	err := env.eng.FetchOrders(ctx)
	assert.True(t, IsAuthExpired(err))

	st := env.eng.State()
	assert.Equal(t, ir.GuestSession(), st.Session)
	assert.Empty(t, st.Orders)

	n, ok := env.eng.Notices().TryNext()
	require.True(t, ok)
	assert.Equal(t, NoticeSessionExpired, n.Kind)
}

func TestFetchOrders_FailureClearsCache(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)
	require.NotEmpty(t, env.eng.Orders())

	env.sb.FailNext(http.MethodGet, "/orders/", http.StatusInternalServerError, "")
	err := env.eng.FetchOrders(ctx)
	assert.Equal(t, ErrCodeNetwork, CodeOf(err))
	assert.Empty(t, env.eng.Orders(), "no stale data on error")
	assert.Equal(t, ir.RoleChef, env.eng.Session().Role, "only auth failures log out")
	assert.Equal(t, 0, env.eng.Notices().Len(), "read failures queue no notice")
}

func TestFetchOrders_StaleResponseDiscarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)

	gated := newGatedBackend(env.client)
	eng := env.withBackend(t, gated)

	// First fetch is sent while only o1 exists.
	errs := make(chan error, 2)
	go func() { errs <- eng.FetchOrders(ctx) }()
	first := gated.waitCall(t)

	// Second fetch is sent after o2 exists and returns first.
	env.seedOrder("o2", ir.StatusPending, "T2")
	go func() { errs <- eng.FetchOrders(ctx) }()
	second := gated.waitCall(t)

	gated.release(second)
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"o2", "o1"}, orderIDs(eng.Orders()))

	gated.release(first)
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"o2", "o1"}, orderIDs(eng.Orders()), "older response must not overwrite newer")
}

func TestFetchOrders_LogoutDiscardsInFlight(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)

	gated := newGatedBackend(env.client)
	eng := env.withBackend(t, gated)

	errs := make(chan error, 1)
	go func() { errs <- eng.FetchOrders(ctx) }()
	n := gated.waitCall(t)

	require.NoError(t, eng.Logout(ctx))
	rev := eng.State().Revision
	gated.release(n)
	require.NoError(t, <-errs)

	assert.Equal(t, rev, eng.State().Revision, "response for the old session is not applied")
	assert.Empty(t, eng.Orders())
	assert.Equal(t, ir.RoleGuest, eng.Session().Role)
}

func TestFetchOrders_CanceledContextDiscarded(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)
	rev := env.eng.State().Revision

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = env.eng.FetchOrders(ctx)

	assert.Equal(t, []string{"o1"}, orderIDs(env.eng.Orders()), "a torn-down view does not apply state")
	assert.Equal(t, rev, env.eng.State().Revision)
}

func TestFetchCurrentOrders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.seedOrder("o2", ir.StatusPaid, "T1")
	env.loginCustomer(t)

	require.NoError(t, env.eng.FetchCurrentOrders(ctx, false))
	assert.Equal(t, []string{"o1"}, orderIDs(env.eng.Orders()))

	require.NoError(t, env.eng.FetchCurrentOrders(ctx, true))
	assert.ElementsMatch(t, []string{"o1", "o2"}, orderIDs(env.eng.Orders()))
}

func TestFetchCurrentOrders_CustomerOnly(t *testing.T) {
	env := newTestEnv(t)
	env.loginStaff(t, ir.RoleChef)

	err := env.eng.FetchCurrentOrders(context.Background(), true)
	assert.True(t, IsRoleMismatch(err))
	assert.Equal(t, 0, env.sb.Hits(http.MethodGet, "/api/orders/current/"))
}

// oddOrdersBackend serves orders and a menu with fields a strict client
// would reject: zero quantities, blank statuses, missing ids.
type oddOrdersBackend struct {
	Backend
}

func (oddOrdersBackend) ListOrders(ctx context.Context, token string) ([]ir.Order, error) {
	return []ir.Order{
		{ID: "x1", Items: []ir.CartItem{{ID: "m2", Price: 150}}, Total: 0},
		{ID: "x2", Items: []ir.CartItem{{Name: "off-menu", Price: -5, Qty: 1}}, Total: -5, Status: "served"},
		{ID: "", Items: []ir.CartItem{{ID: "m1", Price: 706, Qty: 1}}, Status: ir.StatusPending},
	}, nil
}

func (oddOrdersBackend) FetchMenu(ctx context.Context) ([]ir.MenuItem, error) {
	return []ir.MenuItem{
		{ID: "m1", Name: "Paneer Tikka", Price: 706},
		{ID: "", Name: "Nameless", Price: 10},
		{ID: "m9", Name: "Refund", Price: -1},
	}, nil
}

func TestFetchOrders_OddBackendDataSurvivesReload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.loadMenu(t)
	_, err := env.eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, env.eng.SelectTable(ctx, "T4"))
	env.loginStaff(t, ir.RoleChef)

	eng := env.withBackend(t, oddOrdersBackend{Backend: env.client})
	require.NoError(t, eng.FetchOrders(ctx))
	_, err = eng.FetchMenu(ctx)
	require.NoError(t, err)

	before := eng.State()
	assert.Equal(t, []string{"x1", "x2"}, orderIDs(before.Orders), "orders without an id are not cached")
	assert.Equal(t, 0, before.Orders[0].Items[0].Qty, "backend lines are kept as received")
	require.Len(t, before.Menu, 1, "unorderable menu items are dropped")

	reloaded := env.withBackend(t, env.client)
	after := reloaded.State()
	assert.Equal(t, before, after, "load(save(S)) == S")
	assert.Equal(t, ir.RoleChef, after.Session.Role)
	assert.Len(t, after.Cart, 1)
	require.NotNil(t, after.CurrentTable)
	assert.Equal(t, "T4", *after.CurrentTable)
}
