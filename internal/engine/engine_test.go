package engine

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/store"
)

func TestNew_DefaultsToGuest(t *testing.T) {
	env := newTestEnv(t)

	st := env.eng.State()
	assert.Equal(t, ir.GuestSession(), st.Session)
	assert.Empty(t, st.Cart)
	assert.Empty(t, st.Orders)
	assert.Nil(t, st.CurrentTable)
	assert.Nil(t, st.PendingOrder)
	assert.Equal(t, int64(0), st.Revision)
}

func TestNew_RehydratesCustomer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.loadMenu(t)
	env.loginCustomer(t)
	_, err := env.eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, env.eng.SelectTable(ctx, "T4"))
	before := env.eng.State()

	reloaded := New(ctx, env.store, env.client, WithNow(func() time.Time { return fixedNow }))
	after := reloaded.State()

	assert.Equal(t, before, after, "load(save(S)) == S")
	assert.Equal(t, ir.RoleCustomer, after.Session.Role)
	assert.NotEmpty(t, after.Session.Token, "token restored from sealed form")
}

func TestNew_WithoutSealerRehydratesAsGuest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	env := newTestEnv(t)
	env.store = openTestStore(t, path)
	eng := env.withBackend(t, env.client)
	ctx := context.Background()
	env.loadMenu(t)
	env.loginCustomer(t)
	_, err := eng.AddToCart(ctx, "m2")
	require.NoError(t, err)
	require.NoError(t, env.store.Close())

	plain, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { plain.Close() })

	reloaded := New(ctx, plain, env.client).State()
	assert.Equal(t, ir.GuestSession(), reloaded.Session, "identity cannot be restored without the key")
	assert.Len(t, reloaded.Cart, 1, "the rest of the state survives")
}

func TestNew_ExpiredTokenDowngradesToGuest(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Minute)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	snap := store.DefaultSnapshot()
	snap.User = ir.Session{Role: ir.RoleChef, Token: expired}
	require.NoError(t, st.Save(ctx, snap))

	eng := New(ctx, st, nil, WithNow(func() time.Time { return fixedNow }))
	assert.Equal(t, ir.RoleGuest, eng.Session().Role)

	persisted, _ := st.Load(ctx)
	assert.Equal(t, ir.RoleGuest, persisted.User.Role, "downgrade is persisted")
}

func TestTokenExpired(t *testing.T) {
	sign := func(claims jwt.Claims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"opaque token", "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b", false},
		{"no exp", sign(jwt.MapClaims{"sub": "x"}), false},
		{"future exp", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour))}), false},
		{"past exp", sign(jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(fixedNow.Add(-time.Second))}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tokenExpired(tt.token, fixedNow))
		})
	}
}

func TestDispatch_OneWritePerMutation(t *testing.T) {
	env := newTestEnv(t)
	counting := &countingStore{Persister: env.store}
	eng := New(context.Background(), counting, env.client)
	ctx := context.Background()

	_, err := eng.FetchMenu(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counting.Saves())

	_, err = eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, eng.UpdateQty(ctx, "m1", 3))
	require.NoError(t, eng.SelectTable(ctx, "T2"))
	assert.Equal(t, 4, counting.Saves())
	assert.Equal(t, int64(4), eng.State().Revision)

	added, err := eng.AddToCart(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 4, counting.Saves(), "a no-op add writes nothing")
}

func TestDispatch_ConcurrentAddsLoseNothing(t *testing.T) {
	env := newTestEnv(t)
	env.loadMenu(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.eng.AddToCart(ctx, "m1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	cart := env.eng.Cart()
	require.Len(t, cart, 1)
	assert.Equal(t, n, cart[0].Qty)

	persisted, ok := env.store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, n, persisted.Cart[0].Qty, "the last write carries every add")
}

func TestState_IsImmutableSnapshot(t *testing.T) {
	env := newTestEnv(t)
	env.loadMenu(t)
	ctx := context.Background()

	_, err := env.eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	held := env.eng.State()

	_, err = env.eng.AddToCart(ctx, "m1")
	require.NoError(t, err)
	require.NoError(t, env.eng.ClearCart(ctx))

	require.Len(t, held.Cart, 1)
	assert.Equal(t, 1, held.Cart[0].Qty)
}

func TestState_Lookups(t *testing.T) {
	s := menuState()
	item, ok := s.MenuItem("m3")
	require.True(t, ok)
	assert.Equal(t, "Mango Lassi", item.Name)

	_, ok = s.Order("missing")
	assert.False(t, ok)

	s = mustReduce(t, s, AddToCart{ItemID: "m1"}, AddToCart{ItemID: "m1"}, AddToCart{ItemID: "m3"})
	assert.InDelta(t, 1492.5, s.CartTotal(), 1e-9)
	assert.Equal(t, "", s.Table())
}
