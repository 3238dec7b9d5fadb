// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the store when the permission file changes on disk
// outside the portal, so manual edits take effect without a restart.
// The store's own atomic writes are recognized by content and skipped.
//
// Watch blocks until ctx is cancelled. The parent directory is watched
// rather than the file itself: atomic replacement swaps the inode, and
// a watch on the old inode would go silent after the first save.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != s.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			s.maybeReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("file watcher error", "error", err)
		}
	}
}

// maybeReload re-reads the permission file unless its content matches
// the store's last save.
func (s *Store) maybeReload() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		// The file may be mid-replacement; the next event retries.
		return
	}
	if s.isOwnWrite(data) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		s.logger.Warn("reloading permission file after external change",
			"path", s.path,
			"error", err,
		)
		return
	}
	s.lastWritten = data
	s.logger.Info("permission file reloaded after external change", "path", s.path)
}
