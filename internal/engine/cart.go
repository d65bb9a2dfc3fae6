package engine

import (
	"context"
	"errors"

	"github.com/roach88/tableside/internal/ir"
)

// AddToCart adds one unit of a menu item, inserting it at qty 1 if absent.
// It reports false without changing anything when the id is not in the
// cached menu (menu not loaded yet, or an invalid id).
func (e *Engine) AddToCart(ctx context.Context, itemID string) (bool, error) {
	itemID = ir.NormalizeIdentifier(itemID)
	added := false
	_, _, err := e.transact(ctx, func(prev State) ([]Action, error) {
		if _, ok := prev.MenuItem(itemID); !ok {
			return nil, errSkip
		}
		added = true
		return []Action{AddToCart{ItemID: itemID}}, nil
	})
	if err != nil && !errors.Is(err, errSkip) {
		return false, err
	}
	return added, nil
}

// RemoveFromCart deletes the line for itemID. Removing an absent id is a no-op.
func (e *Engine) RemoveFromCart(ctx context.Context, itemID string) error {
	_, err := e.dispatch(ctx, RemoveFromCart{ItemID: ir.NormalizeIdentifier(itemID)})
	return err
}

// UpdateQty sets the quantity of a line, clamping anything below 1 to 1.
// Use RemoveFromCart or DecrementQty to take a line out of the cart.
func (e *Engine) UpdateQty(ctx context.Context, itemID string, qty int) error {
	_, err := e.dispatch(ctx, UpdateQty{ItemID: ir.NormalizeIdentifier(itemID), Qty: qty})
	return err
}

// DecrementQty lowers a line's quantity by one and removes it when it reaches zero.
func (e *Engine) DecrementQty(ctx context.Context, itemID string) error {
	_, err := e.dispatch(ctx, DecrementQty{ItemID: ir.NormalizeIdentifier(itemID)})
	return err
}

// ClearCart empties the cart.
func (e *Engine) ClearCart(ctx context.Context) error {
	_, err := e.dispatch(ctx, ClearCart{})
	return err
}

// SelectTable sets the current table from a QR scan or manual entry.
// An empty table clears the selection.
func (e *Engine) SelectTable(ctx context.Context, table string) error {
	_, err := e.dispatch(ctx, SelectTable{Table: ir.StringPtr(ir.NormalizeIdentifier(table))})
	return err
}

// Cart returns the current cart.
func (e *Engine) Cart() []ir.CartItem {
	return e.State().Cart
}
