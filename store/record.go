// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"time"
)

// AccessKind is the access mode of a filesystem grant.
type AccessKind string

const (
	AccessRead    AccessKind = "read"
	AccessWrite   AccessKind = "write"
	AccessExecute AccessKind = "execute"
)

// Valid reports whether k is a known access kind.
func (k AccessKind) Valid() bool {
	switch k {
	case AccessRead, AccessWrite, AccessExecute:
		return true
	}
	return false
}

// FilesystemGrant authorizes an application for every path nested
// under Path. Grants are matched by whole path segments: a grant on
// /a/b covers /a/b and /a/b/c, but not /a/bc.
type FilesystemGrant struct {
	Path   string     `json:"path"`
	Access AccessKind `json:"access"`

	// GrantedAt records when the interactive allow decision happened.
	GrantedAt time.Time `json:"granted_at"`
}

// SettingsLevel is the permission level for one setting key.
type SettingsLevel string

const (
	SettingsNone      SettingsLevel = "none"
	SettingsReadOnly  SettingsLevel = "read_only"
	SettingsReadWrite SettingsLevel = "read_write"
)

// AllowsRead reports whether the level permits reading the key.
func (l SettingsLevel) AllowsRead() bool {
	return l == SettingsReadOnly || l == SettingsReadWrite
}

// AllowsWrite reports whether the level permits writing the key.
func (l SettingsLevel) AllowsWrite() bool {
	return l == SettingsReadWrite
}

// PermissionRecord is the durable grant set for one application.
// The zero value is a record with nothing granted.
type PermissionRecord struct {
	// Filesystem holds prefix grants in the order they were made.
	// Order is preserved so an administrator reading the file can
	// reconstruct the grant history.
	Filesystem []FilesystemGrant `json:"filesystem,omitempty"`

	// Background permits launching commands detached from the portal.
	Background bool `json:"background,omitempty"`

	// Screenshot permits screen capture in any mode without
	// re-prompting.
	Screenshot bool `json:"screenshot,omitempty"`

	// Settings maps fully-qualified setting keys to per-application
	// levels. Keys present here take precedence over the global
	// access lists.
	Settings map[string]SettingsLevel `json:"settings,omitempty"`
}

// clone returns a deep copy so callers can inspect a record without
// holding the store lock.
func (r *PermissionRecord) clone() *PermissionRecord {
	copied := &PermissionRecord{
		Background: r.Background,
		Screenshot: r.Screenshot,
	}
	copied.Filesystem = append(copied.Filesystem, r.Filesystem...)
	if r.Settings != nil {
		copied.Settings = make(map[string]SettingsLevel, len(r.Settings))
		for key, level := range r.Settings {
			copied.Settings[key] = level
		}
	}
	return copied
}

// document is the on-disk shape of the permission record file.
type document struct {
	Version int                          `json:"version"`
	Apps    map[string]*PermissionRecord `json:"apps"`
}

// documentVersion is the current permission file format version.
const documentVersion = 1

func (d *document) validate() error {
	if d.Version != documentVersion {
		return fmt.Errorf("unsupported permission file version %d", d.Version)
	}
	for appID, record := range d.Apps {
		if record == nil {
			return fmt.Errorf("app %q: null record", appID)
		}
		for _, grant := range record.Filesystem {
			if grant.Path == "" {
				return fmt.Errorf("app %q: filesystem grant with empty path", appID)
			}
			if !grant.Access.Valid() {
				return fmt.Errorf("app %q: unknown access kind %q", appID, grant.Access)
			}
		}
	}
	return nil
}
