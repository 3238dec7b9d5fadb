// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// settingsEnv builds a store whose global access lists expose the
// appearance namespace read-write and the interface namespace
// read-only.
func settingsEnv(t *testing.T) (*store.Store, *fakeBackend, *Settings) {
	t.Helper()
	access := store.NewSettingsAccess(
		[]string{"org.gnome.desktop.interface.*"},
		[]string{"org.freedesktop.appearance.*"},
	)
	st := store.NewStore(filepath.Join(t.TempDir(), "permissions.json"), store.UserDirs{}, access, fakeClockAt(), testLogger())
	if err := st.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	backend := &fakeBackend{values: map[string]any{
		"org.freedesktop.appearance.color-scheme": "prefer-dark",
		"org.gnome.desktop.interface.font-name":   "Sans 11",
		"com.vendor.private.token":                "secret",
	}}
	return st, backend, NewSettings(st, backend, testLogger())
}

func mustRaw(t *testing.T, value any) codec.RawMessage {
	t.Helper()
	raw, err := codec.Marshal(value)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestReadSettingAllowed(t *testing.T) {
	_, _, settings := settingsEnv(t)

	resp, err := settings.Read(context.Background(), testApp, ipc.Request{
		Namespace: "org.freedesktop.appearance",
		Key:       "color-scheme",
	})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var value string
	if err := codec.Unmarshal(resp.Value, &value); err != nil {
		t.Fatalf("decoding value: %v", err)
	}
	if value != "prefer-dark" {
		t.Fatalf("value = %q", value)
	}
}

func TestReadSettingUnlistedDenied(t *testing.T) {
	_, _, settings := settingsEnv(t)

	_, err := settings.Read(context.Background(), testApp, ipc.Request{
		Namespace: "com.vendor.private",
		Key:       "token",
	})
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("kind = %q, want permission-denied", KindOf(err))
	}
}

func TestWriteSettingReadOnlyDenied(t *testing.T) {
	_, backend, settings := settingsEnv(t)

	err := settings.Write(context.Background(), testApp, ipc.Request{
		Namespace: "org.gnome.desktop.interface",
		Key:       "font-name",
		Value:     mustRaw(t, "Comic Sans 14"),
	})
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("kind = %q, want permission-denied", KindOf(err))
	}
	if len(backend.writes) != 0 {
		t.Fatal("denied write reached the backend")
	}
}

func TestWriteSettingReadWrite(t *testing.T) {
	_, backend, settings := settingsEnv(t)

	if err := settings.Write(context.Background(), testApp, ipc.Request{
		Namespace: "org.freedesktop.appearance",
		Key:       "color-scheme",
		Value:     mustRaw(t, "prefer-light"),
	}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := backend.writes["org.freedesktop.appearance.color-scheme"]; got != "prefer-light" {
		t.Fatalf("backend value = %v", got)
	}
}

func TestPerAppOverrideBeatsGlobalList(t *testing.T) {
	st, _, settings := settingsEnv(t)

	// An explicit per-application deny shadows the global read-write
	// listing for this application only.
	if err := st.SetSettingsPermission(testApp, "org.freedesktop.appearance.color-scheme", store.SettingsNone); err != nil {
		t.Fatalf("SetSettingsPermission: %v", err)
	}
	_, err := settings.Read(context.Background(), testApp, ipc.Request{
		Namespace: "org.freedesktop.appearance",
		Key:       "color-scheme",
	})
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("kind = %q, want permission-denied", KindOf(err))
	}

	if _, err := settings.Read(context.Background(), "org.example.Other", ipc.Request{
		Namespace: "org.freedesktop.appearance",
		Key:       "color-scheme",
	}); err != nil {
		t.Fatalf("other application should still read: %v", err)
	}
}

func TestSettingRequiresNamespaceAndKey(t *testing.T) {
	_, _, settings := settingsEnv(t)

	_, err := settings.Read(context.Background(), testApp, ipc.Request{Key: "alone"})
	if KindOf(err) != KindUnsupportedMode {
		t.Fatalf("kind = %q, want unsupported-mode", KindOf(err))
	}
}
