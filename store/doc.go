// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store implements the portal's durable trust state: the
// permission record set, the settings access lists, and the
// non-authorizing preference file.
//
// [Store] is the single durable authority for per-application grants.
// It holds one [PermissionRecord] per application id: filesystem
// prefix grants, the background-execution boolean, the screenshot
// boolean, and per-application settings levels. Grants are persisted
// synchronously before the granting call returns; a persistence
// failure is reported to the caller rather than treated as granted,
// because an unpersisted allow would silently re-prompt on the next
// start (fail closed).
//
// Filesystem authorization has one carve-out that never touches the
// record set: paths under the user's well-known directories (home and
// its Documents, Downloads, Pictures, Music, and Videos subtrees) are
// always allowed without prompting. [UserDirs] encodes that policy.
//
// Settings authorization is resolved per-application first, then
// against the global allow-lists in [SettingsAccess], which are loaded
// from a sysadmin-edited JSONC file. The global lists deliberately do
// not consider which application is asking; per-application levels in
// the permission record exist to narrow or widen individual keys.
//
// [Preferences] is a second, independent file for state that must
// survive restarts but grants nothing: the remembered application per
// content type and the last-used directory per application.
//
// Both files live in the per-user state directory and are written
// atomically (temp file, fsync, rename, directory fsync) so a crash
// mid-write cannot corrupt previously valid state. [Store.Watch] uses
// fsnotify to pick up external edits to the permission file, ignoring
// the store's own writes.
package store
