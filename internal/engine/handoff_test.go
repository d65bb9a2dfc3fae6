package engine

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
)

// guestCheckout fills a guest cart with one of each menu item at table T7
// and checks out, capturing the pending order.
func (env *testEnv) guestCheckout(t *testing.T) ir.PendingOrder {
	t.Helper()
	ctx := context.Background()
	env.loadMenu(t)
	for _, id := range []string{"m1", "m2", "m3"} {
		_, err := env.eng.AddToCart(ctx, id)
		require.NoError(t, err)
	}
	require.NoError(t, env.eng.SelectTable(ctx, "T7"))

	_, err := env.eng.Checkout(ctx)
	require.True(t, IsAuthRequired(err), "got %v", err)
	pending := env.eng.PendingOrder()
	require.NotNil(t, pending)
	return *pending
}

func TestPendingOrder_ReplayedOnceAfterOTP(t *testing.T) {
	env := newTestEnv(t)
	pending := env.guestCheckout(t)
	assert.Len(t, pending.Items, 3)

	placed := env.loginCustomer(t)
	require.NotNil(t, placed, "pending order replayed on login")

	assert.Len(t, placed.Items, 3)
	assert.Equal(t, "T7", *placed.TableNo)
	assert.InDelta(t, 936.5, placed.Total, 1e-9)
	assert.Equal(t, ir.Customer{Phone: testPhone, Email: testEmail}, placed.Customer)

	assert.Nil(t, env.eng.PendingOrder())
	assert.Empty(t, env.eng.Cart(), "cart cleared once the order is placed")
	require.Len(t, env.sb.Orders(), 1)
	assert.Equal(t, []string{placed.ID}, orderIDs(env.eng.Orders()))
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))
}

func TestPendingOrder_SecondVerifyDoesNotResubmit(t *testing.T) {
	env := newTestEnv(t)
	env.guestCheckout(t)
	require.NotNil(t, env.loginCustomer(t))

	assert.Nil(t, env.loginCustomer(t), "nothing left to replay")
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))
	assert.Len(t, env.sb.Orders(), 1)
}

func TestPendingOrder_ConcurrentLogins(t *testing.T) {
	env := newTestEnv(t)
	env.guestCheckout(t)
	token, err := env.sb.IssueToken(ir.RoleCustomer, testPhone, testEmail)
	require.NoError(t, err)

	var wg sync.WaitGroup
	placed := make([]*ir.Order, 4)
	for i := range placed {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o, err := env.eng.LoginCustomer(context.Background(), testPhone, testEmail, token)
			assert.NoError(t, err)
			placed[i] = o
		}(i)
	}
	wg.Wait()

	var n int
	for _, o := range placed {
		if o != nil {
			n++
		}
	}
	assert.Equal(t, 1, n, "exactly one login replays the pending order")
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))
}

func TestPendingOrder_ClaimedCaptureNotResubmitted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := env.guestCheckout(t)
	require.NotNil(t, env.loginCustomer(t))
	require.NoError(t, env.eng.Logout(ctx))

	// The same capture restored by a stale client.
	require.NoError(t, env.eng.SetPendingOrder(ctx, &pending))
	assert.Nil(t, env.loginCustomer(t))
	assert.Nil(t, env.eng.PendingOrder())
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))

	fingerprint, err := ir.PendingOrderFingerprint(pending)
	require.NoError(t, err)
	claimed, err := env.store.HasClaim(ctx, fingerprint)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestPendingOrder_FailedReplayIsDropped(t *testing.T) {
	env := newTestEnv(t)
	env.guestCheckout(t)

	env.sb.FailNext(http.MethodPost, "/orders/", http.StatusInternalServerError, "")
	placed := env.loginCustomer(t)

	assert.Nil(t, placed)
	assert.Equal(t, ir.RoleCustomer, env.eng.Session().Role, "login still succeeds")
	assert.Nil(t, env.eng.PendingOrder(), "not retried")
	assert.Len(t, env.eng.Cart(), 3, "cart kept for a manual retry")
	assert.Empty(t, env.sb.Orders())

	n, ok := env.eng.Notices().TryNext()
	require.True(t, ok)
	assert.Equal(t, NoticeNetwork, n.Kind)

	// A manual retry places the cart exactly once.
	require.NoError(t, env.eng.SelectTable(context.Background(), "T7"))
	_, err := env.eng.Checkout(context.Background())
	require.NoError(t, err)
	assert.Len(t, env.sb.Orders(), 1)
}

func TestPendingOrder_SurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	pending := env.guestCheckout(t)

	env.withBackend(t, env.client)
	restored := env.eng.PendingOrder()
	require.NotNil(t, restored)
	assert.Equal(t, pending, *restored)

	placed := env.loginCustomer(t)
	require.NotNil(t, placed)
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))
}

func TestSetPendingOrder(t *testing.T) {
	env := newTestEnv(t, WithIDGenerator(NewFixedGenerator("cap-1")))
	ctx := context.Background()
	items := []ir.CartItem{{ID: "m2", Name: "Masala Dosa", Price: 150, Qty: 1}}

	require.NoError(t, env.eng.SetPendingOrder(ctx, &ir.PendingOrder{Items: items}))
	p := env.eng.PendingOrder()
	require.NotNil(t, p)
	assert.Equal(t, "cap-1", p.CaptureID, "missing capture id assigned")
	assert.Nil(t, p.TableNo)

	require.NoError(t, env.eng.SetPendingOrder(ctx, nil))
	assert.Nil(t, env.eng.PendingOrder())

	require.NoError(t, env.eng.SetPendingOrder(ctx, &ir.PendingOrder{CaptureID: "cap-x", Items: items}))
	require.NoError(t, env.eng.Logout(ctx))
	assert.Nil(t, env.eng.PendingOrder(), "logout clears the pending order")

	env.loginCustomer(t)
	err := env.eng.SetPendingOrder(ctx, &ir.PendingOrder{CaptureID: "cap-y", Items: items})
	assert.True(t, IsRoleMismatch(err))
}

func TestCapturePendingOrder_Guards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.eng.CapturePendingOrder(ctx)
	assert.Equal(t, ErrCodeEmptyCart, CodeOf(err))

	env.loadMenu(t)
	_, err = env.eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	env.loginCustomer(t)
	err = env.eng.CapturePendingOrder(ctx)
	assert.True(t, IsRoleMismatch(err))
	assert.Nil(t, env.eng.PendingOrder())
}

func TestPendingOrder_SurvivesRejectedVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	pending := env.guestCheckout(t)

	require.NoError(t, env.eng.RequestOTP(ctx, testPhone, testEmail))
	env.sb.FailNext(http.MethodPost, "/auth/customer/verify/", http.StatusUnauthorized, "Invalid OTP.")
	placed, err := env.eng.VerifyOTP(ctx, testPhone, testEmail, testOTP)
	require.Error(t, err)
	assert.Nil(t, placed)
	assert.Equal(t, ErrCodeValidation, CodeOf(err))
	assert.Equal(t, "Invalid OTP.", err.(*Error).Message)

	st := env.eng.State()
	assert.Equal(t, ir.RoleGuest, st.Session.Role)
	require.NotNil(t, st.PendingOrder, "pending order kept after a rejected code")
	assert.Equal(t, pending, *st.PendingOrder)
	require.NotNil(t, st.CurrentTable)
	assert.Equal(t, "T7", *st.CurrentTable)
	assert.Len(t, st.Cart, 3)

	n, ok := env.eng.Notices().TryNext()
	require.True(t, ok)
	assert.Equal(t, NoticeRejected, n.Kind)
	_, ok = env.eng.Notices().TryNext()
	assert.False(t, ok, "no session_expired notice")

	// The next correct code still replays the order.
	require.NotNil(t, env.loginCustomer(t))
	assert.Equal(t, 1, env.sb.Hits(http.MethodPost, "/api/orders/"))
}
