// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/bureau-foundation/portal/lib/clock"
)

// Store is the durable permission record set, keyed by application id.
//
// All mutation goes through a single mutex so load-modify-persist is
// atomic with respect to other writers. Grant methods persist before
// returning: when they return nil, the grant has reached disk.
type Store struct {
	path     string
	userDirs UserDirs
	access   *SettingsAccess
	logger   *slog.Logger
	clock    clock.Clock

	mu      sync.Mutex
	records map[string]*PermissionRecord

	// lastWritten is the exact content of the store's most recent
	// save. The file watcher compares incoming file content against
	// it to distinguish external edits from our own writes.
	lastWritten []byte
}

// NewStore creates a store persisting to path. The file is not read
// until Load is called. access may be nil, which denies all settings
// keys not granted per-application.
func NewStore(path string, userDirs UserDirs, access *SettingsAccess, clk clock.Clock, logger *slog.Logger) *Store {
	if access == nil {
		access = &SettingsAccess{}
	}
	return &Store{
		path:     path,
		userDirs: userDirs,
		access:   access,
		logger:   logger,
		clock:    clk,
		records:  make(map[string]*PermissionRecord),
	}
}

// Load reads the permission file. A missing file is an empty store. A
// malformed file is logged and treated as empty rather than failing
// startup: the portal must come up even if the state file was
// corrupted, and the safe interpretation of unreadable state is "no
// grants".
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.records = make(map[string]*PermissionRecord)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading permission file: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("permission file malformed, starting with empty grants",
			"path", s.path,
			"error", err,
		)
		s.records = make(map[string]*PermissionRecord)
		return nil
	}
	if err := doc.validate(); err != nil {
		s.logger.Warn("permission file invalid, starting with empty grants",
			"path", s.path,
			"error", err,
		)
		s.records = make(map[string]*PermissionRecord)
		return nil
	}

	if doc.Apps == nil {
		doc.Apps = make(map[string]*PermissionRecord)
	}
	s.records = doc.Apps
	s.lastWritten = data
	return nil
}

// Save persists the full record set atomically.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	doc := document{Version: documentVersion, Apps: s.records}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling permission records: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("persisting permission records: %w", err)
	}
	s.lastWritten = data
	return nil
}

// recordLocked returns the record for appID, creating it if absent.
// Must be called with s.mu held.
func (s *Store) recordLocked(appID string) *PermissionRecord {
	record, ok := s.records[appID]
	if !ok {
		record = &PermissionRecord{}
		s.records[appID] = record
	}
	return record
}

// IsFilesystemAllowed reports whether appID may access path. True when
// the path lies under a well-known user directory, or when any stored
// prefix grant for appID covers it.
func (s *Store) IsFilesystemAllowed(appID, path string) bool {
	if s.userDirs.Contains(path) {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appID]
	if !ok {
		return false
	}
	for _, grant := range record.Filesystem {
		if pathHasPrefix(path, grant.Path) {
			return true
		}
	}
	return false
}

// GrantFilesystem appends a prefix grant for appID and persists it
// before returning. A persist failure leaves the in-memory state as it
// was, so a failed grant cannot be observed as granted.
func (s *Store) GrantFilesystem(appID, path string, access AccessKind) error {
	if !access.Valid() {
		return fmt.Errorf("unknown access kind %q", access)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.recordLocked(appID)
	record.Filesystem = append(record.Filesystem, FilesystemGrant{
		Path:      path,
		Access:    access,
		GrantedAt: s.clock.Now().UTC(),
	})

	if err := s.saveLocked(); err != nil {
		record.Filesystem = record.Filesystem[:len(record.Filesystem)-1]
		return err
	}
	return nil
}

// HasBackground reports whether appID holds the background-execution
// grant.
func (s *Store) HasBackground(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appID]
	return ok && record.Background
}

// GrantBackground records the background-execution grant for appID,
// persisting before returning.
func (s *Store) GrantBackground(appID string) error {
	return s.grantBool(appID, func(r *PermissionRecord) *bool { return &r.Background })
}

// HasScreenshot reports whether appID holds the screenshot grant.
func (s *Store) HasScreenshot(appID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appID]
	return ok && record.Screenshot
}

// GrantScreenshot records the screenshot grant for appID, persisting
// before returning.
func (s *Store) GrantScreenshot(appID string) error {
	return s.grantBool(appID, func(r *PermissionRecord) *bool { return &r.Screenshot })
}

func (s *Store) grantBool(appID string, field func(*PermissionRecord) *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.recordLocked(appID)
	target := field(record)
	previous := *target
	*target = true

	if err := s.saveLocked(); err != nil {
		*target = previous
		return err
	}
	return nil
}

// SettingsPermission resolves the level for one fully-qualified key.
// A per-application level in the record takes precedence; otherwise
// the global access lists decide.
func (s *Store) SettingsPermission(appID, key string) SettingsLevel {
	s.mu.Lock()
	if record, ok := s.records[appID]; ok {
		if level, ok := record.Settings[key]; ok {
			s.mu.Unlock()
			return level
		}
	}
	s.mu.Unlock()
	return s.access.Level(key)
}

// SetSettingsPermission records a per-application level for one key,
// persisting before returning. SettingsNone is stored explicitly: it
// overrides a global allow for that application.
func (s *Store) SetSettingsPermission(appID, key string, level SettingsLevel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := s.recordLocked(appID)
	if record.Settings == nil {
		record.Settings = make(map[string]SettingsLevel)
	}
	previous, existed := record.Settings[key]
	record.Settings[key] = level

	if err := s.saveLocked(); err != nil {
		if existed {
			record.Settings[key] = previous
		} else {
			delete(record.Settings, key)
		}
		return err
	}
	return nil
}

// Record returns a copy of the permission record for appID, or nil if
// the application has no grants. For inspection (portalctl), not for
// authorization decisions.
func (s *Store) Record(appID string) *PermissionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[appID]
	if !ok {
		return nil
	}
	return record.clone()
}

// AppIDs returns every application id with a record, for inspection.
func (s *Store) AppIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids
}

// isOwnWrite reports whether data matches the store's most recent
// save. Used by the watcher to skip reload on our own writes.
func (s *Store) isOwnWrite(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastWritten != nil && bytes.Equal(data, s.lastWritten)
}
