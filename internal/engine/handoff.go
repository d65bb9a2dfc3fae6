package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/tableside/internal/ir"
)

// SetPendingOrder stores a cart and table captured before authentication,
// or clears it when p is nil. Only a guest may hold a pending order.
// A capture without an id is assigned one.
func (e *Engine) SetPendingOrder(ctx context.Context, p *ir.PendingOrder) error {
	if p != nil && p.CaptureID == "" {
		cp := *p
		cp.CaptureID = e.ids.Generate()
		p = &cp
	}
	_, err := e.dispatch(ctx, SetPendingOrder{Pending: p})
	return err
}

// CapturePendingOrder snapshots the live cart and current table as the
// pending order.
func (e *Engine) CapturePendingOrder(ctx context.Context) error {
	captureID := e.ids.Generate()
	_, next, err := e.transact(ctx, func(prev State) ([]Action, error) {
		if prev.Session.Role != ir.RoleGuest {
			return nil, newRoleError("capture pending order", prev.Session.Role, string(ir.RoleGuest))
		}
		if len(prev.Cart) == 0 {
			return nil, &Error{Code: ErrCodeEmptyCart, Message: "cart is empty"}
		}
		return []Action{SetPendingOrder{Pending: &ir.PendingOrder{
			CaptureID: captureID,
			Items:     prev.Cart,
			TableNo:   prev.CurrentTable,
		}}}, nil
	})
	if err != nil {
		return err
	}
	slog.Info("pending order captured", "capture_id", captureID, "items", len(next.PendingOrder.Items), "table", next.Table())
	return nil
}

// PendingOrder returns the captured pending order, or nil.
func (e *Engine) PendingOrder() *ir.PendingOrder {
	return e.State().PendingOrder
}

// replayPending places a pending order that has already been detached from
// state. The capture is claimed in the store first, so the same capture is
// submitted at most once even across retries and restarts. If placement
// fails the capture is not retried: losing it is preferred over a duplicate.
// The live cart is cleared only if the order was placed.
func (e *Engine) replayPending(ctx context.Context, p ir.PendingOrder) *ir.Order {
	fingerprint, err := ir.PendingOrderFingerprint(p)
	if err != nil {
		slog.Error("pending order not replayed", "capture_id", p.CaptureID, "error", err)
		return nil
	}

	claimed, err := e.store.ClaimPendingOrder(ctx, fingerprint, p.CaptureID, e.replaySeq.Next())
	if err != nil {
		slog.Error("pending order not replayed: claim failed", "capture_id", p.CaptureID, "error", err)
		return nil
	}
	if !claimed {
		slog.Warn("pending order already replayed, skipping", "capture_id", p.CaptureID)
		return nil
	}

	sess := e.Session()
	if sess.Role != ir.RoleCustomer {
		slog.Warn("pending order dropped: session changed before replay", "capture_id", p.CaptureID, "role", sess.Role)
		return nil
	}
	if len(p.Items) == 0 {
		slog.Warn("pending order dropped: no items", "capture_id", p.CaptureID)
		return nil
	}

	customer := ir.Customer{Phone: sess.Phone, Email: sess.Email}
	placed, err := e.placeOrder(ctx, sess.Token, p.Items, p.TableNo, customer, true)
	if err != nil {
		slog.Warn("pending order lost", "capture_id", p.CaptureID, "error", err)
		return nil
	}
	slog.Info("pending order replayed", "capture_id", p.CaptureID, "order_id", placed.ID)
	return placed
}
