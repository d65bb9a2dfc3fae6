package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Poller re-runs a fetch on a fixed interval for as long as a view is active.
//
// Start fetches once immediately and then once per interval. Stop cancels
// the poller's context and waits for the goroutine to exit, so after Stop
// returns no further fetch starts and any fetch in flight has returned
// (its response discarded if it was overtaken). Pollers for different
// views run independently; their requests are not coalesced.
type Poller struct {
	name     string
	interval time.Duration
	fetch    func(context.Context) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a stopped poller.
func NewPoller(name string, interval time.Duration, fetch func(context.Context) error) *Poller {
	return &Poller{name: name, interval: interval, fetch: fetch}
}

// NewOrderPoller polls FetchOrders.
func (e *Engine) NewOrderPoller(name string, interval time.Duration) *Poller {
	return NewPoller(name, interval, e.FetchOrders)
}

// NewCurrentOrderPoller polls FetchCurrentOrders for a customer view.
func (e *Engine) NewCurrentOrderPoller(name string, interval time.Duration, includePaid bool) *Poller {
	return NewPoller(name, interval, func(ctx context.Context) error {
		return e.FetchCurrentOrders(ctx, includePaid)
	})
}

// Start begins polling under ctx. Starting a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		_ = p.Run(ctx)
	}(p.done)
}

// Stop cancels polling and waits for the poll goroutine to exit.
// Stopping a stopped poller is a no-op. A stopped poller may be started again.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Run polls in the calling goroutine until ctx is done and returns ctx.Err().
// Fetch errors are logged and polling continues.
func (p *Poller) Run(ctx context.Context) error {
	slog.Debug("poller started", "view", p.name, "interval", p.interval)
	defer slog.Debug("poller stopped", "view", p.name)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.fetch(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("poll failed", "view", p.name, "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
