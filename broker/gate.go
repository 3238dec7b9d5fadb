// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bureau-foundation/portal/lib/clock"
)

// ConsentGate serializes the load-check-prompt-grant sequence per
// (application, resource) key and bounds every interactive consent
// wait with a timeout on the injected clock.
//
// Serialization uses a singleflight group: a second request for the
// same key while the first is mid-prompt joins the first's outcome
// instead of showing a duplicate dialog or racing the grant write.
// Requests for distinct keys never contend.
type ConsentGate struct {
	clock   clock.Clock
	timeout time.Duration
	group   singleflight.Group
}

// NewConsentGate creates a gate with the given consent timeout.
func NewConsentGate(clk clock.Clock, timeout time.Duration) *ConsentGate {
	return &ConsentGate{clock: clk, timeout: timeout}
}

// Serialize runs flow under the key for (appID, resource). Concurrent
// calls with the same key share one execution and its outcome.
func (g *ConsentGate) Serialize(appID, resource string, flow func() (any, error)) (any, error) {
	value, err, _ := g.group.Do(appID+"\x00"+resource, flow)
	return value, err
}

// Prompt runs one blocking ConsentProvider interaction bounded by
// gate's timeout. On timeout the interaction's context is cancelled
// (tearing the dialog down) and the request fails as
// PermissionDenied with ErrConsentTimeout as the cause. Cancellation
// of ctx itself maps to KindCancelled.
func Prompt[T any](ctx context.Context, gate *ConsentGate, interact func(context.Context) (T, error)) (T, error) {
	promptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	results := make(chan outcome, 1)
	go func() {
		value, err := interact(promptCtx)
		results <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case result := <-results:
		return result.value, result.err
	case <-gate.clock.After(gate.timeout):
		cancel()
		return zero, Wrap(KindPermissionDenied, ErrConsentTimeout, "no consent decision within %s", gate.timeout)
	case <-ctx.Done():
		cancel()
		return zero, Wrap(KindCancelled, ctx.Err(), "request cancelled during consent")
	}
}
