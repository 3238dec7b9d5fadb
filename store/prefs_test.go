// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"os"
	"path/filepath"
	"testing"
)

func testPreferences(t *testing.T) (*Preferences, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "preferences.json")
	p := NewPreferences(path, testLogger())
	if err := p.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return p, path
}

func TestPreferencesChoiceRoundTrip(t *testing.T) {
	p, path := testPreferences(t)

	if got := p.Choice("image/png"); got != "" {
		t.Fatalf("fresh Choice = %q, want empty", got)
	}
	if err := p.SetChoice("image/png", "org.gnome.Loupe"); err != nil {
		t.Fatalf("SetChoice: %v", err)
	}
	if got := p.Choice("image/png"); got != "org.gnome.Loupe" {
		t.Fatalf("Choice = %q", got)
	}

	reloaded := NewPreferences(path, testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.Choice("image/png"); got != "org.gnome.Loupe" {
		t.Fatalf("Choice after reload = %q", got)
	}
}

func TestPreferencesForgetChoice(t *testing.T) {
	p, _ := testPreferences(t)

	if err := p.ForgetChoice("text/plain"); err != nil {
		t.Fatalf("ForgetChoice on absent entry: %v", err)
	}
	if err := p.SetChoice("text/plain", "org.gnome.TextEditor"); err != nil {
		t.Fatalf("SetChoice: %v", err)
	}
	if err := p.ForgetChoice("text/plain"); err != nil {
		t.Fatalf("ForgetChoice: %v", err)
	}
	if got := p.Choice("text/plain"); got != "" {
		t.Fatalf("Choice after forget = %q", got)
	}
}

func TestPreferencesLastDir(t *testing.T) {
	p, path := testPreferences(t)

	if got := p.LastDir("org.example.App"); got != "" {
		t.Fatalf("fresh LastDir = %q", got)
	}
	if err := p.SetLastDir("org.example.App", "/home/alice/Documents/projects"); err != nil {
		t.Fatalf("SetLastDir: %v", err)
	}

	reloaded := NewPreferences(path, testLogger())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.LastDir("org.example.App"); got != "/home/alice/Documents/projects" {
		t.Fatalf("LastDir after reload = %q", got)
	}
	if got := reloaded.LastDir("org.example.Other"); got != "" {
		t.Fatalf("LastDir crossed applications: %q", got)
	}
}

func TestPreferencesMalformedFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	p := NewPreferences(path, testLogger())
	if err := p.Load(); err != nil {
		t.Fatalf("Load should tolerate malformed file: %v", err)
	}
	if got := p.Choice("image/png"); got != "" {
		t.Fatalf("Choice from malformed file = %q", got)
	}
}
