// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"

	"github.com/bureau-foundation/portal/lib/ipc"
)

// Capture is one captured image: encoded PNG bytes plus pixel
// dimensions.
type Capture struct {
	PNG    []byte
	Width  int
	Height int
}

// Output describes one display output in virtual-screen coordinates.
type Output struct {
	Name   string
	Bounds ipc.Rect
}

// ScreenCapturer performs the actual pixel capture. Implementations
// talk to the compositor; the broker only decides whether a capture
// is authorized and which region to ask for.
type ScreenCapturer interface {
	// Outputs lists the current display outputs. The fullscreen mode
	// captures the union bounding box of all of them.
	Outputs(ctx context.Context) ([]Output, error)

	// CaptureArea captures a rectangle in virtual-screen coordinates.
	CaptureArea(ctx context.Context, area ipc.Rect) (*Capture, error)

	// CaptureOutput captures one named output.
	CaptureOutput(ctx context.Context, name string) (*Capture, error)

	// CaptureWindow captures one window by compositor window id.
	CaptureWindow(ctx context.Context, id string) (*Capture, error)
}

// Launcher starts a command detached from the broker: its own
// session, stdio disconnected, so it outlives the portal process.
type Launcher interface {
	// Launch starts command and returns its pid. The returned
	// process is not supervised; the pid is recorded as metadata
	// only.
	Launch(ctx context.Context, command []string) (int, error)
}

// SessionManager is the external session daemon that enforces
// inhibitions. The broker registers and unregisters; the manager does
// the actual blocking of logout, user switching, suspend, and idle.
type SessionManager interface {
	// Inhibit registers an inhibition under the given id.
	Inhibit(ctx context.Context, id, appID, reason string, flags ipc.InhibitFlags) error

	// Uninhibit removes a registered inhibition. Unknown ids are a
	// no-op: crash-recovery cleanup calls this unconditionally.
	Uninhibit(ctx context.Context, id string) error
}

// SettingsBackend is the external settings daemon. The broker decides
// whether a read or write is permitted; the backend performs it.
type SettingsBackend interface {
	Read(ctx context.Context, namespace, key string) (any, error)
	Write(ctx context.Context, namespace, key string, value any) error
}

// UserInfo is the identity record returned by get-user-info.
type UserInfo struct {
	Name           string
	Username       string
	Avatar         string
	Locale         string
	KeyboardLayout string
	SessionID      string
}

// IdentityProvider supplies the current user's identity fields.
type IdentityProvider interface {
	UserInfo(ctx context.Context) (UserInfo, error)
}

// AppRegistry resolves installed applications. Used by the
// application chooser when the caller supplies no explicit
// candidates.
type AppRegistry interface {
	// ByContentType lists applications registered as handlers for a
	// content type.
	ByContentType(contentType string) []ipc.AppCandidate

	// Describe resolves an application id to a candidate with its
	// display name. Unknown ids come back with an empty Name.
	Describe(appID string) ipc.AppCandidate
}
