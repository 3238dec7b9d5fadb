// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"testing"

	"github.com/bureau-foundation/portal/lib/ipc"
)

func pdfRegistry() *fakeRegistry {
	viewer := ipc.AppCandidate{ID: "org.example.Viewer", Name: "Document Viewer"}
	browser := ipc.AppCandidate{ID: "org.example.Browser", Name: "Web Browser"}
	return &fakeRegistry{
		byType: map[string][]ipc.AppCandidate{
			"application/pdf": {viewer, browser},
		},
		byID: map[string]ipc.AppCandidate{
			viewer.ID:  viewer,
			browser.ID: browser,
		},
	}
}

func TestChooseFromRegistry(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Viewer"
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	result, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if result.AppID != "org.example.Viewer" {
		t.Fatalf("AppID = %q", result.AppID)
	}
}

func TestChooseRemembersSelection(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Browser"
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	if _, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/pdf",
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if got := e.prefs.Choice("application/pdf"); got != "org.example.Browser" {
		t.Fatalf("remembered choice = %q", got)
	}

	// The remembered choice becomes the chooser's preselection.
	if _, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/pdf",
	}); err != nil {
		t.Fatalf("second Choose: %v", err)
	}
	if e.consent.lastDefault != "org.example.Browser" {
		t.Fatalf("chooser default = %q", e.consent.lastDefault)
	}
}

func TestChooseExplicitCandidates(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Custom"
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	result, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/pdf",
		Choices:     []string{"org.example.Viewer", "org.example.Custom"},
	})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if result.AppID != "org.example.Custom" {
		t.Fatalf("AppID = %q", result.AppID)
	}
}

func TestChooseDismissed(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = ""
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	_, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/pdf",
	})
	if KindOf(err) != KindNoChoice {
		t.Fatalf("kind = %q, want no-choice", KindOf(err))
	}
}

func TestChooseNoCandidates(t *testing.T) {
	e := newEnv(t)
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	_, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType: "application/x-unknown",
	})
	if KindOf(err) != KindNoChoice {
		t.Fatalf("kind = %q, want no-choice", KindOf(err))
	}
}

func TestChooseRecentChoicesLeadAndPreselect(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Browser"
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	if _, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType:   "application/pdf",
		RecentChoices: []string{"org.example.Browser", "org.example.Viewer"},
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}

	// With no remembered preference, the most recent choice is both
	// moved to the front of the chooser and preselected.
	if e.consent.lastDefault != "org.example.Browser" {
		t.Fatalf("chooser default = %q, want the most recent choice", e.consent.lastDefault)
	}
	if len(e.consent.lastCandidates) != 2 || e.consent.lastCandidates[0].ID != "org.example.Browser" {
		t.Fatalf("candidate order = %v, want recent choice first", e.consent.lastCandidates)
	}
}

func TestChoosePreferenceBeatsRecentChoices(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Viewer"
	if err := e.prefs.SetChoice("application/pdf", "org.example.Viewer"); err != nil {
		t.Fatalf("SetChoice: %v", err)
	}
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	if _, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType:   "application/pdf",
		RecentChoices: []string{"org.example.Browser"},
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if e.consent.lastDefault != "org.example.Viewer" {
		t.Fatalf("chooser default = %q, want the persisted preference", e.consent.lastDefault)
	}
}

func TestChooseIgnoresUnknownRecentChoices(t *testing.T) {
	e := newEnv(t)
	e.consent.chooseID = "org.example.Viewer"
	chooser := NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, testLogger())

	if _, err := chooser.Choose(context.Background(), testApp, ipc.Request{
		ContentType:   "application/pdf",
		RecentChoices: []string{"org.example.Gone"},
	}); err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if e.consent.lastDefault != "" {
		t.Fatalf("chooser default = %q, want none", e.consent.lastDefault)
	}
	if e.consent.lastCandidates[0].ID != "org.example.Viewer" {
		t.Fatalf("candidate order = %v, want registry order", e.consent.lastCandidates)
	}
}
