// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"

	"github.com/bureau-foundation/portal/lib/ipc"
)

// ConsentProvider is the interactive mechanism that asks the user to
// allow or deny a capability, and hosts the picker dialogs the portal
// delegates to. All methods block until the user answers or ctx is
// done; implementations must honor cancellation so a destroyed parent
// window or a consent timeout tears the dialog down.
//
// ConfirmAccess returns (false, nil) for an explicit deny; errors are
// reserved for the provider itself failing.
type ConsentProvider interface {
	// ConfirmAccess shows an allow/deny prompt. Title is short;
	// body names the application and the resource it is asking for.
	ConfirmAccess(ctx context.Context, appID, title, body string) (bool, error)

	// PickOpenFiles shows a file-open dialog. An empty slice means
	// the dialog was dismissed.
	PickOpenFiles(ctx context.Context, appID string, req FilePickRequest) ([]string, error)

	// PickSaveFile shows a save dialog. An empty path means the
	// dialog was dismissed.
	PickSaveFile(ctx context.Context, appID string, req FilePickRequest) (string, error)

	// ChooseApplication shows an application chooser over the given
	// candidates. An empty id means the chooser was dismissed.
	ChooseApplication(ctx context.Context, appID, contentType string, candidates []ipc.AppCandidate, defaultID string) (string, error)

	// PickColor shows an interactive color picker.
	PickColor(ctx context.Context, appID string) (ipc.ColorResult, error)

	// SelectArea lets the user select a screen rectangle for an
	// interactive area capture.
	SelectArea(ctx context.Context, appID string) (ipc.Rect, error)
}

// FilePickRequest carries the dialog parameters for PickOpenFiles and
// PickSaveFile.
type FilePickRequest struct {
	Title         string
	StartDir      string
	SuggestedName string
	Multiple      bool
	Directory     bool
	Filters       []ipc.FileFilter
}
