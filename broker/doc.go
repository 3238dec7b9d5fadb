// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker is the portal's mediation core: it accepts capability
// requests from sandboxed applications, consults the permission store,
// obtains interactive consent when no grant exists, and performs or
// authorizes the privileged action.
//
// # Request lifecycle
//
// The Dispatcher allocates a RequestHandle per asynchronous capability
// call and runs the routed handler in its own goroutine. The handle
// moves Created → Pending → Resolved or Cancelled, exactly once.
// Callers long-poll the outcome with Await and may withdraw with
// Cancel; destruction of the originating parent window cancels every
// handle submitted on its behalf. A consent wait is bounded by a
// configurable timeout on the injected clock, so an abandoned dialog
// cannot leave a handle pending forever.
//
// # Serialization
//
// Requests from distinct applications are fully independent. Requests
// from the same application for the same permission key are collapsed
// through a singleflight group around the load-check-prompt-grant
// sequence: a second concurrent request joins the first's pending
// consent outcome instead of double-prompting or racing the grant
// write.
//
// # Collaborators
//
// Human interaction goes through the ConsentProvider interface;
// privileged actions go through effector interfaces (ScreenCapturer,
// Launcher, SessionManager, SettingsBackend, IdentityProvider,
// AppRegistry). Both are injected at handler construction, never
// reached through shared state, so every handler is testable with
// fakes. Default implementations that talk to the host live in this
// package alongside the interfaces.
package broker
