// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the CBOR-encoded message types for the portal's
// Unix socket protocols: the client socket (sandboxed applications),
// the admin socket (portalctl and desktop-shell notifications), and
// the consent socket (the consent agent). The daemon, portalctl, and
// portal-consent all import this package so the wire types are defined
// once rather than mirrored.
package ipc
