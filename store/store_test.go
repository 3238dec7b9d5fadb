// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/portal/lib/clock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeClock() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "permissions.json")
	dirs := UserDirs{Home: "/home/alice", Pictures: "/home/alice/Pictures"}
	s := NewStore(path, dirs, nil, fakeClock(), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return s, path
}

func TestGrantFilesystemPersists(t *testing.T) {
	s, path := testStore(t)

	if s.IsFilesystemAllowed("org.example.Editor", "/srv/projects/notes.txt") {
		t.Fatal("ungranted path allowed")
	}
	if err := s.GrantFilesystem("org.example.Editor", "/srv/projects", AccessRead); err != nil {
		t.Fatalf("GrantFilesystem: %v", err)
	}
	if !s.IsFilesystemAllowed("org.example.Editor", "/srv/projects/notes.txt") {
		t.Fatal("granted prefix not allowed")
	}
	if s.IsFilesystemAllowed("org.example.Other", "/srv/projects/notes.txt") {
		t.Fatal("grant leaked to other application")
	}

	// A fresh store over the same file sees the grant.
	reloaded := NewStore(path, UserDirs{}, nil, fakeClock(), testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load after grant: %v", err)
	}
	if !reloaded.IsFilesystemAllowed("org.example.Editor", "/srv/projects/notes.txt") {
		t.Fatal("grant lost across reload")
	}
}

func TestFilesystemPrefixIsSegmentWise(t *testing.T) {
	s, _ := testStore(t)

	if err := s.GrantFilesystem("org.example.Editor", "/srv/proj", AccessRead); err != nil {
		t.Fatalf("GrantFilesystem: %v", err)
	}
	if s.IsFilesystemAllowed("org.example.Editor", "/srv/projects/notes.txt") {
		t.Fatal("string prefix matched across a path segment")
	}
	if !s.IsFilesystemAllowed("org.example.Editor", "/srv/proj/notes.txt") {
		t.Fatal("segment prefix not matched")
	}
	if !s.IsFilesystemAllowed("org.example.Editor", "/srv/proj") {
		t.Fatal("exact granted path not matched")
	}
}

func TestWellKnownDirsAlwaysAllowed(t *testing.T) {
	s, _ := testStore(t)

	if !s.IsFilesystemAllowed("org.example.Editor", "/home/alice/Pictures/cat.png") {
		t.Fatal("well-known directory denied")
	}
	if s.IsFilesystemAllowed("org.example.Editor", "/home/bob/Pictures/cat.png") {
		t.Fatal("foreign home allowed")
	}
}

func TestGrantFilesystemRejectsUnknownAccess(t *testing.T) {
	s, _ := testStore(t)
	if err := s.GrantFilesystem("org.example.Editor", "/srv", AccessKind("admin")); err == nil {
		t.Fatal("expected error for unknown access kind")
	}
}

func TestBooleanGrants(t *testing.T) {
	s, path := testStore(t)

	if s.HasBackground("org.example.Agent") || s.HasScreenshot("org.example.Agent") {
		t.Fatal("fresh application has grants")
	}
	if err := s.GrantBackground("org.example.Agent"); err != nil {
		t.Fatalf("GrantBackground: %v", err)
	}
	if err := s.GrantScreenshot("org.example.Shot"); err != nil {
		t.Fatalf("GrantScreenshot: %v", err)
	}

	reloaded := NewStore(path, UserDirs{}, nil, fakeClock(), testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.HasBackground("org.example.Agent") {
		t.Fatal("background grant lost")
	}
	if reloaded.HasScreenshot("org.example.Agent") {
		t.Fatal("screenshot grant crossed applications")
	}
	if !reloaded.HasScreenshot("org.example.Shot") {
		t.Fatal("screenshot grant lost")
	}
}

func TestSettingsPermissionResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	access := NewSettingsAccess(
		[]string{"org.gnome.desktop.interface.*"},
		[]string{"org.freedesktop.appearance.color-scheme"},
	)
	s := NewStore(path, UserDirs{}, access, fakeClock(), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Global lists apply when no per-application record exists.
	if got := s.SettingsPermission("org.example.App", "org.gnome.desktop.interface.font-name"); got != SettingsReadOnly {
		t.Fatalf("global read-only key: got %q", got)
	}
	if got := s.SettingsPermission("org.example.App", "org.freedesktop.appearance.color-scheme"); got != SettingsReadWrite {
		t.Fatalf("global read-write key: got %q", got)
	}
	if got := s.SettingsPermission("org.example.App", "org.secret.key"); got != SettingsNone {
		t.Fatalf("unlisted key: got %q", got)
	}

	// A per-application level overrides the global list, including
	// an explicit deny.
	if err := s.SetSettingsPermission("org.example.App", "org.secret.key", SettingsReadWrite); err != nil {
		t.Fatalf("SetSettingsPermission: %v", err)
	}
	if err := s.SetSettingsPermission("org.example.App", "org.freedesktop.appearance.color-scheme", SettingsNone); err != nil {
		t.Fatalf("SetSettingsPermission: %v", err)
	}
	if got := s.SettingsPermission("org.example.App", "org.secret.key"); got != SettingsReadWrite {
		t.Fatalf("per-app grant: got %q", got)
	}
	if got := s.SettingsPermission("org.example.App", "org.freedesktop.appearance.color-scheme"); got != SettingsNone {
		t.Fatalf("per-app deny should override global: got %q", got)
	}
	// Other applications still see the global lists.
	if got := s.SettingsPermission("org.example.Other", "org.freedesktop.appearance.color-scheme"); got != SettingsReadWrite {
		t.Fatalf("other app affected by per-app override: got %q", got)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, _ := testStore(t)
	if ids := s.AppIDs(); len(ids) != 0 {
		t.Fatalf("expected empty store, got %v", ids)
	}
}

func TestLoadMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, UserDirs{}, nil, fakeClock(), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load should tolerate malformed file: %v", err)
	}
	if s.HasBackground("org.example.App") {
		t.Fatal("malformed file produced grants")
	}

	// The store stays usable: new grants persist over the bad file.
	if err := s.GrantBackground("org.example.App"); err != nil {
		t.Fatalf("GrantBackground after malformed load: %v", err)
	}
	reloaded := NewStore(path, UserDirs{}, nil, fakeClock(), testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reloaded.HasBackground("org.example.App") {
		t.Fatal("grant lost after recovering from malformed file")
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	if err := os.WriteFile(path, []byte(`{"version": 99, "apps": {}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewStore(path, UserDirs{}, nil, fakeClock(), testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ids := s.AppIDs(); len(ids) != 0 {
		t.Fatalf("wrong-version file should load empty, got %v", ids)
	}
}

func TestGrantTimestampUsesClock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "permissions.json")
	clk := fakeClock()
	s := NewStore(path, UserDirs{}, nil, clk, testLogger())
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.GrantFilesystem("org.example.App", "/srv", AccessWrite); err != nil {
		t.Fatalf("GrantFilesystem: %v", err)
	}

	record := s.Record("org.example.App")
	if record == nil || len(record.Filesystem) != 1 {
		t.Fatalf("unexpected record: %+v", record)
	}
	if got, want := record.Filesystem[0].GrantedAt, clk.Now().UTC(); !got.Equal(want) {
		t.Fatalf("GrantedAt = %v, want %v", got, want)
	}
}

func TestRecordReturnsCopy(t *testing.T) {
	s, _ := testStore(t)
	if err := s.GrantFilesystem("org.example.App", "/srv", AccessRead); err != nil {
		t.Fatalf("GrantFilesystem: %v", err)
	}

	record := s.Record("org.example.App")
	record.Filesystem[0].Path = "/tampered"
	record.Background = true

	if s.IsFilesystemAllowed("org.example.App", "/tampered/x") {
		t.Fatal("mutating the returned record changed the store")
	}
	if s.HasBackground("org.example.App") {
		t.Fatal("mutating the returned record changed the store")
	}
	if s.Record("org.example.Missing") != nil {
		t.Fatal("expected nil record for unknown application")
	}
}
