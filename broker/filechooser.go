// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// FileChooser mediates open-file and save-file requests. Access to
// the requested folder is checked against the permission store first;
// when no grant covers it, the user is asked once and an allow is
// recorded for the whole folder. The directory-level grant is a
// deliberate breadth tradeoff: repeated access to the same folder
// must not re-prompt.
type FileChooser struct {
	store    *store.Store
	prefs    *store.Preferences
	userDirs store.UserDirs
	consent  ConsentProvider
	gate     *ConsentGate
	sessions *SessionRegistry
	logger   *slog.Logger
}

// NewFileChooser wires a file access handler.
func NewFileChooser(st *store.Store, prefs *store.Preferences, userDirs store.UserDirs, consent ConsentProvider, gate *ConsentGate, sessions *SessionRegistry, logger *slog.Logger) *FileChooser {
	return &FileChooser{
		store:    st,
		prefs:    prefs,
		userDirs: userDirs,
		consent:  consent,
		gate:     gate,
		sessions: sessions,
		logger:   logger,
	}
}

// Open handles an open-file request: authorize the folder, delegate
// the picking dialog, and return the chosen files as file:// URIs.
func (f *FileChooser) Open(ctx context.Context, appID string, req ipc.Request) (*ipc.OpenFileResult, error) {
	folder, err := f.startFolder(appID, req.CurrentFolder)
	if err != nil {
		return nil, err
	}
	if err := f.authorizeFolder(ctx, appID, folder, store.AccessRead); err != nil {
		return nil, err
	}

	paths, err := Prompt(ctx, f.gate, func(ctx context.Context) ([]string, error) {
		return f.consent.PickOpenFiles(ctx, appID, FilePickRequest{
			Title:     req.Title,
			StartDir:  folder,
			Multiple:  req.Multiple,
			Directory: req.Directory,
			Filters:   req.Filters,
		})
	})
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, Errorf(KindCancelled, "file dialog dismissed")
	}

	// Remember where the user browsed to, for future dialog defaults.
	// Non-authorizing state: a failure to persist it is logged, not
	// surfaced.
	if err := f.prefs.SetLastDir(appID, filepath.Dir(paths[0])); err != nil {
		f.logger.Warn("persisting last-used directory", "app_id", appID, "error", err)
	}

	uris := make([]string, len(paths))
	for i, path := range paths {
		uris[i] = fileURI(path)
	}
	return &ipc.OpenFileResult{URIs: uris}, nil
}

// Save handles a save-file request: authorize the folder for writing,
// delegate the save dialog, ensure the parent directories exist, and
// return the final location.
func (f *FileChooser) Save(ctx context.Context, appID string, req ipc.Request) (*ipc.SaveFileResult, error) {
	folder := req.CurrentFolder
	if folder == "" && req.CurrentFile != "" {
		folder = filepath.Dir(req.CurrentFile)
	}
	folder, err := f.startFolder(appID, folder)
	if err != nil {
		return nil, err
	}
	if err := f.authorizeFolder(ctx, appID, folder, store.AccessWrite); err != nil {
		return nil, err
	}

	suggested := req.CurrentName
	if suggested == "" && req.CurrentFile != "" {
		suggested = filepath.Base(req.CurrentFile)
	}

	path, err := Prompt(ctx, f.gate, func(ctx context.Context) (string, error) {
		return f.consent.PickSaveFile(ctx, appID, FilePickRequest{
			Title:         req.Title,
			StartDir:      folder,
			SuggestedName: suggested,
		})
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, Errorf(KindCancelled, "save dialog dismissed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Wrap(KindIoError, err, "creating parent directories for %s", path)
	}

	return &ipc.SaveFileResult{URI: fileURI(path)}, nil
}

// startFolder resolves the dialog's starting folder: the request's
// folder if given, otherwise the application's last-used directory,
// otherwise home.
func (f *FileChooser) startFolder(appID, requested string) (string, error) {
	if requested != "" {
		if !filepath.IsAbs(requested) {
			return "", Errorf(KindInvalidPath, "folder %q is not absolute", requested)
		}
		return filepath.Clean(requested), nil
	}
	if last := f.prefs.LastDir(appID); last != "" {
		return last, nil
	}
	if f.userDirs.Home == "" {
		return "", Errorf(KindNoConfigDir, "no home directory available for dialog default")
	}
	return f.userDirs.Home, nil
}

// authorizeFolder runs the load-check-prompt-grant sequence for one
// folder, serialized per (application, folder) so concurrent requests
// for the same folder share one prompt and one grant write.
func (f *FileChooser) authorizeFolder(ctx context.Context, appID, folder string, access store.AccessKind) error {
	_, err := f.gate.Serialize(appID, "filesystem:"+folder, func() (any, error) {
		if f.store.IsFilesystemAllowed(appID, folder) {
			return nil, nil
		}

		allowed, err := Prompt(ctx, f.gate, func(ctx context.Context) (bool, error) {
			return f.consent.ConfirmAccess(ctx, appID,
				"File access",
				fmt.Sprintf("%s wants to access %s", appID, folder),
			)
		})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, Errorf(KindPermissionDenied, "access to %s declined", folder)
		}

		// Fail closed: an unpersisted allow would silently re-prompt
		// next launch, so the request fails instead.
		if err := f.store.GrantFilesystem(appID, folder, access); err != nil {
			return nil, Wrap(KindIoError, err, "persisting grant for %s", folder)
		}
		f.sessions.RecordGrant(appID, "filesystem:"+folder)
		return nil, nil
	})
	return err
}

// fileURI renders an absolute path as a file:// URI.
func fileURI(path string) string {
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}
