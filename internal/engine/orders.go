package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/tableside/internal/ir"
)

// FetchOrders refreshes the order cache from GET /orders/.
//
// Without a token the cache is emptied and nothing is sent. On 401/403 the
// session is logged out. On any other failure the cache is emptied rather
// than left stale. Every refresh replaces the whole list (last write wins);
// a response overtaken by a newer fetch, a login, or a logout is discarded.
func (e *Engine) FetchOrders(ctx context.Context) error {
	token := e.Session().Token
	if token == "" {
		_, err := e.dispatch(ctx, SetOrders{})
		return err
	}

	seq := e.orderSeq.Next()
	orders, err := e.client.ListOrders(ctx, token)
	return e.applyOrders(ctx, "fetch orders", seq, orders, err)
}

// FetchCurrentOrders refreshes the cache with the customer's own orders
// from GET /orders/current/. Customer sessions only.
func (e *Engine) FetchCurrentOrders(ctx context.Context, includePaid bool) error {
	sess := e.Session()
	if sess.Role != ir.RoleCustomer {
		return newRoleError("fetch current orders", sess.Role, string(ir.RoleCustomer))
	}

	seq := e.orderSeq.Next()
	orders, err := e.client.CurrentOrders(ctx, sess.Token, sess.Phone, includePaid)
	return e.applyOrders(ctx, "fetch current orders", seq, orders, err)
}

func (e *Engine) applyOrders(ctx context.Context, op string, seq int64, orders []ir.Order, fetchErr error) error {
	if fetchErr != nil {
		if !e.orderSeq.IsLatest(seq) {
			slog.Debug("stale failure discarded", "op", op, "seq", seq)
			return nil
		}
		ee := classify(fetchErr, "")
		if ee.Code == ErrCodeAuthExpired {
			e.fail(ctx, op, fetchErr, "")
			return ee
		}
		slog.Warn("order fetch failed, clearing cache", "op", op, "seq", seq, "code", ee.Code, "error", fetchErr)
		if _, err := e.dispatchLatest(ctx, e.orderSeq, seq, SetOrders{}); err != nil {
			return err
		}
		return ee
	}

	applied, err := e.dispatchLatest(ctx, e.orderSeq, seq, SetOrders{Orders: orders})
	if err != nil {
		return err
	}
	if applied {
		slog.Debug("orders refreshed", "op", op, "seq", seq, "count", len(orders))
	}
	return nil
}

// Orders returns the cached orders, most recent first as delivered by the backend.
func (e *Engine) Orders() []ir.Order {
	return e.State().Orders
}
