// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"strings"
)

// UserDirs is the set of well-known user data directories that every
// application may access without a stored grant and without prompting.
// They are the user's own documents, and a file dialog rooted there is
// the normal case, not a privilege escalation.
type UserDirs struct {
	Home      string
	Documents string
	Downloads string
	Pictures  string
	Music     string
	Videos    string
}

// DefaultUserDirs returns the conventional layout under home. If home
// is empty, the current user's home directory is used.
func DefaultUserDirs(home string) UserDirs {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return UserDirs{
		Home:      home,
		Documents: filepath.Join(home, "Documents"),
		Downloads: filepath.Join(home, "Downloads"),
		Pictures:  filepath.Join(home, "Pictures"),
		Music:     filepath.Join(home, "Music"),
		Videos:    filepath.Join(home, "Videos"),
	}
}

// Contains reports whether path lies under any of the well-known
// directories. Matching is by whole path segments after cleaning.
//
// The named subdirectories are all under Home in the default layout,
// but they are checked individually because a user may relocate them
// (XDG user-dirs allow, say, Documents on a different mount).
func (d UserDirs) Contains(path string) bool {
	for _, root := range []string{d.Home, d.Documents, d.Downloads, d.Pictures, d.Music, d.Videos} {
		if root == "" {
			continue
		}
		if pathHasPrefix(path, root) {
			return true
		}
	}
	return false
}

// pathHasPrefix reports whether path equals prefix or is nested under
// it, comparing whole path segments: /a/b is a prefix of /a/b/c but
// not of /a/bc.
func pathHasPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)
	if path == prefix {
		return true
	}
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	return strings.HasPrefix(path, prefix+string(filepath.Separator))
}
