// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"testing"
	"time"

	"github.com/bureau-foundation/portal/lib/ipc"
)

func TestInhibitAndUninhibit(t *testing.T) {
	manager := &fakeSessionManager{}
	inhibitor := NewInhibitor(manager, fakeClockAt(), testLogger())

	resp, err := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
		Reason: "burning a disc",
		Flags:  ipc.InhibitFlags{Suspend: true, Idle: true},
	})
	if err != nil {
		t.Fatalf("Inhibit: %v", err)
	}
	if resp.ID == "" {
		t.Fatal("no inhibition id")
	}
	if manager.holding() != 1 || inhibitor.Count() != 1 {
		t.Fatalf("holding=%d count=%d, want 1/1", manager.holding(), inhibitor.Count())
	}

	if err := inhibitor.Uninhibit(context.Background(), testApp, resp.ID); err != nil {
		t.Fatalf("Uninhibit: %v", err)
	}
	if manager.holding() != 0 || inhibitor.Count() != 0 {
		t.Fatalf("lock not released: holding=%d count=%d", manager.holding(), inhibitor.Count())
	}

	// Releasing again is a no-op, not an error.
	if err := inhibitor.Uninhibit(context.Background(), testApp, resp.ID); err != nil {
		t.Fatalf("repeated Uninhibit: %v", err)
	}
}

func TestInhibitRequiresFlags(t *testing.T) {
	inhibitor := NewInhibitor(&fakeSessionManager{}, fakeClockAt(), testLogger())

	_, err := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{})
	if KindOf(err) != KindUnsupportedMode {
		t.Fatalf("kind = %q, want unsupported-mode", KindOf(err))
	}
}

func TestUninhibitForeignID(t *testing.T) {
	inhibitor := NewInhibitor(&fakeSessionManager{}, fakeClockAt(), testLogger())

	resp, err := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
		Flags: ipc.InhibitFlags{Logout: true},
	})
	if err != nil {
		t.Fatalf("Inhibit: %v", err)
	}

	err = inhibitor.Uninhibit(context.Background(), "org.example.Other", resp.ID)
	if KindOf(err) != KindPermissionDenied {
		t.Fatalf("kind = %q, want permission-denied", KindOf(err))
	}
	if inhibitor.Count() != 1 {
		t.Fatal("foreign uninhibit removed the inhibition")
	}
}

func TestAdminRemoveIgnoresOwner(t *testing.T) {
	manager := &fakeSessionManager{}
	inhibitor := NewInhibitor(manager, fakeClockAt(), testLogger())

	resp, err := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
		Flags: ipc.InhibitFlags{Idle: true},
	})
	if err != nil {
		t.Fatalf("Inhibit: %v", err)
	}
	if err := inhibitor.Remove(context.Background(), resp.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if manager.holding() != 0 {
		t.Fatal("Remove did not release the lock")
	}
}

func TestReleaseAppDropsOnlyItsInhibitions(t *testing.T) {
	manager := &fakeSessionManager{}
	inhibitor := NewInhibitor(manager, fakeClockAt(), testLogger())

	for range 2 {
		if _, err := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
			Flags: ipc.InhibitFlags{Suspend: true},
		}); err != nil {
			t.Fatalf("Inhibit: %v", err)
		}
	}
	other, err := inhibitor.Inhibit(context.Background(), "org.example.Other", ipc.Request{
		Flags: ipc.InhibitFlags{Idle: true},
	})
	if err != nil {
		t.Fatalf("Inhibit: %v", err)
	}

	if released := inhibitor.ReleaseApp(context.Background(), testApp); released != 2 {
		t.Fatalf("released %d, want 2", released)
	}
	remaining := inhibitor.List()
	if len(remaining) != 1 || remaining[0].ID != other.ID {
		t.Fatalf("remaining = %+v", remaining)
	}
}

func TestListOrderedByCreation(t *testing.T) {
	clk := fakeClockAt()
	inhibitor := NewInhibitor(&fakeSessionManager{}, clk, testLogger())

	first, _ := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
		Flags: ipc.InhibitFlags{Idle: true},
	})
	clk.Advance(time.Minute)
	second, _ := inhibitor.Inhibit(context.Background(), testApp, ipc.Request{
		Flags: ipc.InhibitFlags{Suspend: true},
	})

	list := inhibitor.List()
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Fatalf("list order wrong: %+v", list)
	}
}
