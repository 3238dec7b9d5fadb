// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/portal/lib/clock"
)

// handleRetireGrace is how long a terminal handle stays claimable by
// Await before the dispatcher retires it on its own. Clients that
// submit and then vanish must not pin handle memory forever.
const handleRetireGrace = 5 * time.Minute

// RunFunc is one capability request's execution, started by Submit in
// its own goroutine. The context is cancelled when the request is
// withdrawn, its parent window is destroyed, or the dispatcher shuts
// down.
type RunFunc func(ctx context.Context) (any, error)

// Dispatcher owns the request-handle lifecycle: it allocates handles,
// runs capability handlers as independent goroutines, and delivers
// each outcome against its handle exactly once.
type Dispatcher struct {
	clock    clock.Clock
	sessions *SessionRegistry
	logger   *slog.Logger

	// root is the lifetime of all request goroutines; Shutdown
	// cancels it.
	root     context.Context
	shutdown context.CancelFunc

	mu      sync.Mutex
	handles map[string]*RequestHandle
}

// NewDispatcher creates a dispatcher. Request goroutines live until
// they resolve, are cancelled, or Shutdown is called.
func NewDispatcher(clk clock.Clock, sessions *SessionRegistry, logger *slog.Logger) *Dispatcher {
	root, shutdown := context.WithCancel(context.Background())
	return &Dispatcher{
		clock:    clk,
		sessions: sessions,
		logger:   logger,
		root:     root,
		shutdown: shutdown,
		handles:  make(map[string]*RequestHandle),
	}
}

// Submit allocates a handle for a capability request and starts run
// in its own goroutine. Returns immediately; the outcome is delivered
// against the handle and collected with Await.
//
// Submission touches the application's session, creating it on first
// contact.
func (d *Dispatcher) Submit(appID, parentWindow string, run RunFunc) *RequestHandle {
	d.sessions.Ensure(appID)

	runCtx, cancelRun := context.WithCancel(d.root)
	handle := newRequestHandle(appID, parentWindow, d.clock.Now(), cancelRun)

	d.mu.Lock()
	d.handles[handle.ID] = handle
	d.mu.Unlock()

	go func() {
		defer cancelRun()
		handle.markPending()

		result, err := run(runCtx)
		if handle.resolve(result, err) {
			if err != nil {
				d.logger.Info("request resolved with error",
					"handle", handle.ID,
					"app_id", appID,
					"code", string(KindOf(err)),
					"error", err,
				)
			}
			return
		}
		// The handle went terminal first (cancellation); the outcome
		// is discarded. Resources were released by runCtx unwinding.
		d.logger.Debug("discarding outcome for cancelled request",
			"handle", handle.ID,
			"app_id", appID,
		)
	}()

	go d.retireAfterGrace(handle)

	return handle
}

// retireAfterGrace drops the handle from the registry once it has
// been terminal for handleRetireGrace without being awaited. An Await
// in the meantime retires it first and this becomes a no-op.
func (d *Dispatcher) retireAfterGrace(handle *RequestHandle) {
	select {
	case <-handle.Done():
	case <-d.root.Done():
		return
	}
	select {
	case <-d.clock.After(handleRetireGrace):
	case <-d.root.Done():
		return
	}

	d.mu.Lock()
	_, live := d.handles[handle.ID]
	delete(d.handles, handle.ID)
	d.mu.Unlock()
	if live {
		d.logger.Info("retired unclaimed request handle",
			"handle", handle.ID,
			"app_id", handle.AppID,
		)
	}
}

// Await blocks until the handle reaches a terminal state, then
// retires it and returns its outcome. The terminal state is
// StateResolved (with result or error) or StateCancelled. A handle
// can be awaited once; unknown or already-retired handles fail with
// SessionNotFound.
//
// ctx bounds the wait only — expiry leaves the handle live for a
// later Await.
func (d *Dispatcher) Await(ctx context.Context, handleID string) (RequestState, any, error) {
	d.mu.Lock()
	handle, ok := d.handles[handleID]
	d.mu.Unlock()
	if !ok {
		return "", nil, Errorf(KindSessionNotFound, "unknown request handle %q", handleID)
	}

	select {
	case <-handle.Done():
	case <-ctx.Done():
		return "", nil, Wrap(KindCancelled, ctx.Err(), "await interrupted")
	}

	// Claim the handle under one lock so concurrent awaiters cannot
	// both collect the outcome: exactly one caller retires it.
	d.mu.Lock()
	_, live := d.handles[handleID]
	delete(d.handles, handleID)
	d.mu.Unlock()
	if !live {
		return "", nil, Errorf(KindSessionNotFound, "request handle %q already claimed", handleID)
	}

	state, result, err := handle.Outcome()
	return state, result, err
}

// Cancel withdraws an in-flight request. The handle stays retrievable
// so a concurrent Await observes the cancelled state. Cancelling an
// unknown handle fails with SessionNotFound; cancelling a terminal
// handle is a no-op.
func (d *Dispatcher) Cancel(handleID string) error {
	d.mu.Lock()
	handle, ok := d.handles[handleID]
	d.mu.Unlock()
	if !ok {
		return Errorf(KindSessionNotFound, "unknown request handle %q", handleID)
	}
	handle.Cancel()
	return nil
}

// CancelWindow cancels every in-flight request appID submitted for
// parentWindow. Called when the shell reports the window destroyed.
// Returns how many requests were cancelled.
func (d *Dispatcher) CancelWindow(appID, parentWindow string) int {
	d.mu.Lock()
	var matching []*RequestHandle
	for _, handle := range d.handles {
		if handle.AppID == appID && handle.ParentWindow == parentWindow {
			matching = append(matching, handle)
		}
	}
	d.mu.Unlock()

	cancelled := 0
	for _, handle := range matching {
		if handle.Cancel() {
			cancelled++
		}
	}
	if cancelled > 0 {
		d.logger.Info("cancelled requests for destroyed window",
			"app_id", appID,
			"parent_window", parentWindow,
			"count", cancelled,
		)
	}
	return cancelled
}

// ReleaseApp cancels and retires every handle appID owns, terminal or
// not. Called when the application's session ends; nothing will come
// back to await them. Returns how many handles were dropped.
func (d *Dispatcher) ReleaseApp(appID string) int {
	d.mu.Lock()
	var owned []*RequestHandle
	for _, handle := range d.handles {
		if handle.AppID == appID {
			owned = append(owned, handle)
			delete(d.handles, handle.ID)
		}
	}
	d.mu.Unlock()

	for _, handle := range owned {
		handle.Cancel()
	}
	if len(owned) > 0 {
		d.logger.Info("released request handles for ended session",
			"app_id", appID,
			"count", len(owned),
		)
	}
	return len(owned)
}

// PendingCount returns the number of handles not yet retired.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handles)
}

// Shutdown cancels every in-flight request goroutine. Handles already
// terminal are unaffected.
func (d *Dispatcher) Shutdown() {
	d.shutdown()
}
