// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSettingsAccessLevel(t *testing.T) {
	access := NewSettingsAccess(
		[]string{"org.gnome.desktop.interface.*", "org.example.exact-key"},
		[]string{"org.freedesktop.appearance.*"},
	)

	cases := []struct {
		key  string
		want SettingsLevel
	}{
		{"org.gnome.desktop.interface.font-name", SettingsReadOnly},
		{"org.gnome.desktop.interface", SettingsNone},
		{"org.gnome.desktop.interfaces.font-name", SettingsNone},
		{"org.example.exact-key", SettingsReadOnly},
		{"org.example.exact-key.child", SettingsNone},
		{"org.freedesktop.appearance.color-scheme", SettingsReadWrite},
		{"org.freedesktop.appearance.contrast", SettingsReadWrite},
		{"com.vendor.private", SettingsNone},
	}
	for _, c := range cases {
		if got := access.Level(c.key); got != c.want {
			t.Errorf("Level(%q) = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestSettingsAccessReadWriteWins(t *testing.T) {
	// A key in both lists resolves to the stronger level.
	access := NewSettingsAccess(
		[]string{"org.example.key"},
		[]string{"org.example.key"},
	)
	if got := access.Level("org.example.key"); got != SettingsReadWrite {
		t.Fatalf("Level = %q, want %q", got, SettingsReadWrite)
	}
}

func TestLoadSettingsAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings-access.jsonc")
	content := `{
	// Desktop appearance keys applications may read.
	"read_only": [
		"org.gnome.desktop.interface.*",
	],
	"read_write": [
		"org.freedesktop.appearance.color-scheme",
	],
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	access, err := LoadSettingsAccess(path)
	if err != nil {
		t.Fatalf("LoadSettingsAccess: %v", err)
	}
	if got := access.Level("org.gnome.desktop.interface.cursor-size"); got != SettingsReadOnly {
		t.Fatalf("Level = %q, want read_only", got)
	}
	if got := access.Level("org.freedesktop.appearance.color-scheme"); got != SettingsReadWrite {
		t.Fatalf("Level = %q, want read_write", got)
	}
}

func TestLoadSettingsAccessMissingFile(t *testing.T) {
	access, err := LoadSettingsAccess(filepath.Join(t.TempDir(), "absent.jsonc"))
	if err != nil {
		t.Fatalf("missing file should yield empty lists, got %v", err)
	}
	if got := access.Level("org.anything"); got != SettingsNone {
		t.Fatalf("Level = %q, want none", got)
	}
}

func TestLoadSettingsAccessRejectsBadPatterns(t *testing.T) {
	bad := []string{
		`{"read_only": [""]}`,
		`{"read_only": ["*"]}`,
		`{"read_only": [".*"]}`,
		`{"read_write": ["org.*.interface"]}`,
	}
	for _, content := range bad {
		path := filepath.Join(t.TempDir(), "settings-access.jsonc")
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSettingsAccess(path); err == nil {
			t.Errorf("LoadSettingsAccess accepted %s", content)
		}
	}
}
