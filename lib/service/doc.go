// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket protocol shared by the
// portal daemon and its clients.
//
// The protocol is CBOR request-response, one request per connection:
// the client connects, writes a single CBOR value with an "action"
// field, the server processes it and writes a single CBOR response,
// and the connection closes. CBOR is self-delimiting so no framing
// layer is needed.
//
//   - SocketServer: action-dispatch server with connection timeouts,
//     a request size limit, and graceful shutdown.
//   - Client: one-connection-per-call client used by portalctl and by
//     integration tests.
//
// # Caller identity
//
// On the client socket, the application identity behind every request
// comes from the connection itself, never from the request payload.
// The server resolves SO_PEERCRED on each accepted connection and
// hands the handler a Peer with the kernel-verified uid and pid; the
// daemon maps the uid to an application id through its configuration.
// The admin socket uses the same server type with handlers that ignore
// the Peer.
package service
