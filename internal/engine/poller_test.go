package engine

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tableside/internal/ir"
)

func TestPoller_FetchesImmediatelyAndOnInterval(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller("test", 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	p.Start(context.Background())
	assert.True(t, p.Running())
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())
	stopped := calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, calls.Load(), "no fetch after Stop returns")
}

func TestPoller_StartStopIdempotent(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller("test", time.Hour, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	p.Stop()
	p.Start(context.Background())
	p.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	p.Stop()
	p.Stop()

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond, "restart fetches again")
	p.Stop()
}

func TestPoller_ContinuesAfterErrors(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller("test", 5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("unreachable")
	})
	p.Start(context.Background())
	defer p.Stop()
	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestPoller_RunReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := NewPoller("test", time.Hour, func(context.Context) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, p.Run(ctx), context.Canceled)
}

func TestOrderPoller_RefreshesCache(t *testing.T) {
	env := newTestEnv(t)
	env.loginStaff(t, ir.RoleChef)
	assert.Empty(t, env.eng.Orders())

	p := env.eng.NewOrderPoller("chef", 10*time.Millisecond)
	p.Start(context.Background())
	defer p.Stop()

	env.seedOrder("o1", ir.StatusPending, "T1")
	assert.Eventually(t, func() bool {
		return len(env.eng.Orders()) == 1
	}, time.Second, 5*time.Millisecond)

	env.sb.SetStatus("o1", ir.StatusPreparing)
	assert.Eventually(t, func() bool {
		o, ok := env.eng.State().Order("o1")
		return ok && o.Status == ir.StatusPreparing
	}, time.Second, 5*time.Millisecond)
}

func TestCurrentOrderPoller(t *testing.T) {
	env := newTestEnv(t)
	env.loginCustomer(t)
	env.seedOrder("o1", ir.StatusPaid, "T1")

	p := env.eng.NewCurrentOrderPoller("customer", time.Hour, false)
	p.Start(context.Background())
	assert.Eventually(t, func() bool {
		return env.sb.Hits(http.MethodGet, "/api/orders/current/") == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()
	assert.Empty(t, env.eng.Orders(), "paid orders excluded")

	p = env.eng.NewCurrentOrderPoller("history", time.Hour, true)
	p.Start(context.Background())
	assert.Eventually(t, func() bool {
		return len(env.eng.Orders()) == 1
	}, time.Second, 5*time.Millisecond)
	p.Stop()
}

func TestPoller_StopsDuringLogout(t *testing.T) {
	env := newTestEnv(t)
	env.seedOrder("o1", ir.StatusPending, "T1")
	env.loginStaff(t, ir.RoleChef)

	p := env.eng.NewOrderPoller("chef", 5*time.Millisecond)
	p.Start(context.Background())
	require.NoError(t, env.eng.Logout(context.Background()))
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	assert.Empty(t, env.eng.Orders(), "polling as a guest never fills the cache")
}
