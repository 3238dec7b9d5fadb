// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host implements the broker's effector interfaces against a
// real desktop: screen capture through grim and wlr-randr, background
// launches as detached processes, session inhibition through
// systemd-inhibit, desktop settings through gsettings, and user
// identity from the account database.
//
// Everything here shells out to the standard tools rather than
// speaking their protocols directly. The broker never depends on this
// package; tests substitute fakes for the same interfaces.
package host
