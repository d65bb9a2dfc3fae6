package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/tableside/internal/backend"
	"github.com/roach88/tableside/internal/ir"
	"github.com/roach88/tableside/internal/store"
)

// Backend is the REST surface the engine consumes.
// Implemented by *backend.Client.
type Backend interface {
	FetchMenu(ctx context.Context) ([]ir.MenuItem, error)
	ListOrders(ctx context.Context, token string) ([]ir.Order, error)
	CurrentOrders(ctx context.Context, token, phone string, includePaid bool) ([]ir.Order, error)
	CreateOrder(ctx context.Context, token string, order ir.Order) (ir.Order, error)
	PatchOrder(ctx context.Context, token, id string, patch backend.OrderPatch) (ir.Order, error)
	RegisterCustomer(ctx context.Context, phone, email string) error
	VerifyCustomer(ctx context.Context, otp, email string) (string, error)
	StaffLogin(ctx context.Context, username, password string) (string, error)
}

// Persister saves and restores the state snapshot.
// Implemented by *store.Store.
type Persister interface {
	Save(ctx context.Context, snap store.Snapshot) error
	Load(ctx context.Context) (store.Snapshot, bool)
	ClaimPendingOrder(ctx context.Context, fingerprint, captureID string, seq int64) (bool, error)
}

// Engine is the client-side session and order-synchronization engine.
//
// All state lives in one immutable State value. Every mutation is a list of
// Actions reduced against the latest state under e.mu and followed by
// exactly one snapshot write, so rapid consecutive calls can never lose
// each other's updates.
//
// Network calls are made without holding e.mu. Responses to fetches are
// applied only if no newer fetch of the same cache was issued meanwhile.
//
// Thread-safety: all exported methods are safe for concurrent use.
type Engine struct {
	mu    sync.Mutex
	state State

	store   Persister
	client  Backend
	ids     IDGenerator
	now     func() time.Time
	notices *NoticeQueue

	orderSeq  *Clock // request sequence for the order cache
	menuSeq   *Clock // request sequence for the menu cache
	replaySeq *Clock // stamps pending-order claims
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator sets the generator for order and capture ids.
//
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithNow sets the wall clock used for order creation timestamps and
// token expiry checks.
//
// Default: time.Now.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an engine and rehydrates it from the last saved snapshot.
//
// A missing or rejected snapshot yields the guest default. A non-guest
// session whose token is a JWT that has already expired is downgraded to
// guest before the engine is returned.
func New(ctx context.Context, st Persister, client Backend, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		client:    client,
		ids:       UUIDv7Generator{},
		now:       time.Now,
		notices:   newNoticeQueue(),
		orderSeq:  NewClock(),
		menuSeq:   NewClock(),
		replaySeq: NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}

	snap, ok := st.Load(ctx)
	e.state = stateFromSnapshot(snap)
	if ok {
		slog.Debug("state rehydrated", "revision", e.state.Revision, "role", e.state.Session.Role)
	}

	if e.state.Session.Role != ir.RoleGuest && tokenExpired(e.state.Session.Token, e.now()) {
		slog.Info("stored session token expired, rehydrating as guest", "role", e.state.Session.Role)
		if _, err := e.dispatch(ctx, Logout{}); err != nil {
			slog.Warn("failed to reset expired session", "error", err)
		}
	}
	return e
}

// State returns the current state. The value is never mutated afterwards.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Session returns the current identity.
func (e *Engine) Session() ir.Session {
	return e.State().Session
}

// Notices returns the queue of user-visible notices.
func (e *Engine) Notices() *NoticeQueue {
	return e.notices
}

// errSkip aborts a transaction without error; the state is left unchanged.
var errSkip = errors.New("skip")

// transact reduces the actions chosen by plan against the latest state and
// persists the result once. plan runs under e.mu and must not block.
// It returns the state plan saw and the state it produced.
func (e *Engine) transact(ctx context.Context, plan func(prev State) ([]Action, error)) (prev, next State, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev = e.state
	actions, err := plan(prev)
	if err != nil {
		return prev, prev, err
	}

	next = prev
	for _, a := range actions {
		next, err = Reduce(next, a)
		if err != nil {
			return prev, prev, err
		}
	}
	if err := checkState(next); err != nil {
		return prev, prev, fmt.Errorf("reject %s: %w", actionKinds(actions), err)
	}

	next.Revision = prev.Revision + 1
	e.state = next
	e.persist(ctx, next)

	slog.Debug("state updated", "revision", next.Revision, "actions", actionKinds(actions))
	return prev, next, nil
}

// dispatch applies actions unconditionally.
func (e *Engine) dispatch(ctx context.Context, actions ...Action) (State, error) {
	_, next, err := e.transact(ctx, func(State) ([]Action, error) {
		return actions, nil
	})
	return next, err
}

// dispatchLatest applies actions only if seq is still the latest issued by clock
// and ctx is live. It reports whether the actions were applied.
func (e *Engine) dispatchLatest(ctx context.Context, clock *Clock, seq int64, actions ...Action) (bool, error) {
	_, _, err := e.transact(ctx, func(State) ([]Action, error) {
		if ctx.Err() != nil || !clock.IsLatest(seq) {
			return nil, errSkip
		}
		return actions, nil
	})
	if errors.Is(err, errSkip) {
		slog.Debug("stale response discarded", "seq", seq, "latest", clock.Current())
		return false, nil
	}
	return err == nil, err
}

// persist writes the snapshot. Failures are logged, never fatal: the
// in-memory state remains authoritative for this process.
func (e *Engine) persist(ctx context.Context, s State) {
	if err := e.store.Save(context.WithoutCancel(ctx), s.toSnapshot()); err != nil {
		slog.Warn("failed to persist state", "revision", s.Revision, "error", err)
	}
}

// forceLogout resets to guest after the backend rejected the token.
func (e *Engine) forceLogout(ctx context.Context) {
	e.orderSeq.Next()
	if _, err := e.dispatch(ctx, Logout{}); err != nil {
		slog.Error("forced logout failed", "error", err)
		return
	}
	slog.Warn("session expired, logged out")
	e.notices.Push(Notice{Kind: NoticeSessionExpired, Message: msgSessionExpired})
}

// fail classifies a failed backend call, forces logout on auth expiry, and
// queues the matching notice.
func (e *Engine) fail(ctx context.Context, op string, err error, orderID string) *Error {
	ee := classify(err, orderID)
	slog.Warn("backend call failed", "op", op, "code", ee.Code, "order_id", orderID, "error", err)

	switch ee.Code {
	case ErrCodeAuthExpired:
		e.forceLogout(ctx)
	case ErrCodeConflict:
		e.notices.Push(Notice{Kind: NoticeConflict, Message: ee.Message, OrderID: orderID})
	case ErrCodeValidation:
		e.notices.Push(Notice{Kind: NoticeRejected, Message: ee.Message, OrderID: orderID})
	case ErrCodeNetwork:
		e.notices.Push(Notice{Kind: NoticeNetwork, Message: ee.Message, OrderID: orderID})
	}
	return ee
}

// failSignIn classifies a failed call to an endpoint that is sent no token.
// A 401/403 there rejects the credentials; the session is left alone.
func (e *Engine) failSignIn(ctx context.Context, op string, err error) *Error {
	if backend.IsUnauthorized(err) {
		msg := msgRejected
		var be *backend.Error
		if errors.As(err, &be) && be.Message != "" {
			msg = be.Message
		}
		err = &Error{Code: ErrCodeValidation, Message: msg, Err: err}
	}
	return e.fail(ctx, op, err, "")
}

func actionKinds(actions []Action) []string {
	kinds := make([]string, len(actions))
	for i, a := range actions {
		kinds[i] = a.Kind()
	}
	return kinds
}
