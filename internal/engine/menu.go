package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/tableside/internal/ir"
)

// FetchMenu refreshes the catalog from the backend.
//
// On failure the cached menu is replaced with an empty one rather than
// kept stale, and the classified error is returned. A response that
// arrives after a newer FetchMenu was issued is discarded.
func (e *Engine) FetchMenu(ctx context.Context) ([]ir.MenuItem, error) {
	seq := e.menuSeq.Next()

	items, err := e.client.FetchMenu(ctx)
	if err != nil {
		ee := classify(err, "")
		slog.Warn("menu fetch failed", "seq", seq, "code", ee.Code, "error", err)
		if _, derr := e.dispatchLatest(ctx, e.menuSeq, seq, SetMenu{}); derr != nil {
			return nil, derr
		}
		return nil, ee
	}

	applied, err := e.dispatchLatest(ctx, e.menuSeq, seq, SetMenu{Items: items})
	if err != nil {
		return nil, err
	}
	if applied {
		slog.Debug("menu refreshed", "seq", seq, "items", len(items))
	}
	return items, nil
}

// Menu returns the cached catalog.
func (e *Engine) Menu() []ir.MenuItem {
	return e.State().Menu
}
