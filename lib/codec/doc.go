// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the portal's standard CBOR encoding configuration.
//
// The portal uses two serialization formats with a clear boundary:
//
//   - JSON for on-disk state: the permission record file and the
//     preference file are human-inspectable documents that an
//     administrator may audit or repair by hand.
//   - CBOR for socket protocols: capability requests from sandboxed
//     clients, consent agent round-trips, and admin commands.
//
// This package provides the shared CBOR encoding and decoding modes so
// that every portal package encodes identically without duplicating
// configuration. The encoder uses Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding, no
// indefinite-length items. Same logical data always produces identical
// bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (sockets):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: this type is ONLY ever serialized as CBOR — the
//     socket protocol envelopes and payloads in lib/ipc.
//   - `json` tag: this type is serialized as JSON — the on-disk
//     state documents in the store package.
//
// Never use both `cbor` and `json` tags on the same field. The tag
// choice documents the contract — doubling up is noise that obscures
// which format a type participates in.
package codec
