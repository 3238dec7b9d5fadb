// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RequestState is the lifecycle state of one in-flight capability
// request.
type RequestState string

const (
	// StateCreated: handle allocated, handler not yet running.
	StateCreated RequestState = "created"

	// StatePending: handler executing, possibly suspended on consent
	// or an effector.
	StatePending RequestState = "pending"

	// StateResolved: a result (success or domain error) was
	// produced.
	StateResolved RequestState = "resolved"

	// StateCancelled: the caller withdrew the request or its parent
	// window was destroyed before resolution.
	StateCancelled RequestState = "cancelled"
)

// RequestHandle identifies one in-flight capability call. A handle is
// never reused; it reaches exactly one of Resolved or Cancelled, and
// then only reports its outcome.
type RequestHandle struct {
	ID           string
	AppID        string
	ParentWindow string
	CreatedAt    time.Time

	// cancelRun tears down the handler goroutine's context so a
	// cancelled request releases resources it was acquiring.
	cancelRun context.CancelFunc

	mu     sync.Mutex
	state  RequestState
	result any
	err    error
	done   chan struct{}
}

func newRequestHandle(appID, parentWindow string, createdAt time.Time, cancelRun context.CancelFunc) *RequestHandle {
	return &RequestHandle{
		ID:           uuid.NewString(),
		AppID:        appID,
		ParentWindow: parentWindow,
		CreatedAt:    createdAt,
		cancelRun:    cancelRun,
		state:        StateCreated,
		done:         make(chan struct{}),
	}
}

// markPending transitions Created → Pending as the handler goroutine
// starts. No-op if the handle was cancelled before the goroutine got
// scheduled.
func (h *RequestHandle) markPending() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateCreated {
		h.state = StatePending
	}
}

// resolve delivers the handler's outcome. Returns false if the handle
// already reached a terminal state (a cancellation won the race); the
// outcome is then discarded.
func (h *RequestHandle) resolve(result any, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateResolved || h.state == StateCancelled {
		return false
	}
	h.state = StateResolved
	h.result = result
	h.err = err
	close(h.done)
	return true
}

// Cancel withdraws the request. The handler's context is cancelled so
// any suspended consent wait or effector call unwinds and releases
// what it had acquired. Returns false if the handle was already
// terminal.
func (h *RequestHandle) Cancel() bool {
	h.mu.Lock()
	if h.state == StateResolved || h.state == StateCancelled {
		h.mu.Unlock()
		return false
	}
	h.state = StateCancelled
	close(h.done)
	h.mu.Unlock()

	h.cancelRun()
	return true
}

// Done is closed when the handle reaches a terminal state.
func (h *RequestHandle) Done() <-chan struct{} {
	return h.done
}

// Outcome reports the terminal state and, for Resolved, the result or
// error. Callers wait on Done first; before a terminal state the
// result and error are nil.
func (h *RequestHandle) Outcome() (RequestState, any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.result, h.err
}
