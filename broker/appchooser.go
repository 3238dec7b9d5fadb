// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// AppChooser resolves "open this content with some application"
// requests. The chosen application is remembered per content type so
// repeat requests preselect it in the chooser.
type AppChooser struct {
	prefs    *store.Preferences
	registry AppRegistry
	consent  ConsentProvider
	gate     *ConsentGate
	logger   *slog.Logger
}

// NewAppChooser wires an application chooser handler.
func NewAppChooser(prefs *store.Preferences, registry AppRegistry, consent ConsentProvider, gate *ConsentGate, logger *slog.Logger) *AppChooser {
	return &AppChooser{
		prefs:    prefs,
		registry: registry,
		consent:  consent,
		gate:     gate,
		logger:   logger,
	}
}

// Choose presents the chooser and returns the selected application
// id. Candidates are the request's explicit choices when given,
// otherwise the registered handlers for the content type; the
// request's recent choices are moved to the front so the chooser
// shows them first. A dismissed chooser is an error: there is no
// implicit default.
//
// The preselected entry is the persisted per-content-type choice, or
// failing that the most recent of the request's recent choices that
// is actually a candidate.
func (c *AppChooser) Choose(ctx context.Context, appID string, req ipc.Request) (*ipc.ChooseApplicationResult, error) {
	candidates := orderByRecency(c.candidates(req), req.RecentChoices)
	if len(candidates) == 0 {
		return nil, Errorf(KindNoChoice, "no applications can handle %q", req.ContentType)
	}

	defaultID := c.prefs.Choice(req.ContentType)
	if defaultID == "" {
		defaultID = firstCandidateOf(req.RecentChoices, candidates)
	}
	chosen, err := Prompt(ctx, c.gate, func(ctx context.Context) (string, error) {
		return c.consent.ChooseApplication(ctx, appID, req.ContentType, candidates, defaultID)
	})
	if err != nil {
		return nil, err
	}
	if chosen == "" {
		return nil, Errorf(KindNoChoice, "no application selected")
	}

	if req.ContentType != "" {
		if err := c.prefs.SetChoice(req.ContentType, chosen); err != nil {
			c.logger.Warn("remembering application choice failed",
				"content_type", req.ContentType, "error", err)
		}
	}
	return &ipc.ChooseApplicationResult{AppID: chosen}, nil
}

// candidates builds the chooser's entries. Explicit choices from the
// request are resolved through the registry for display names;
// unknown ids are still offered, with the id standing in for the
// name.
func (c *AppChooser) candidates(req ipc.Request) []ipc.AppCandidate {
	if len(req.Choices) > 0 {
		candidates := make([]ipc.AppCandidate, 0, len(req.Choices))
		for _, id := range req.Choices {
			candidate := c.registry.Describe(id)
			if candidate.ID == "" {
				candidate.ID = id
			}
			if candidate.Name == "" {
				candidate.Name = id
			}
			candidates = append(candidates, candidate)
		}
		return candidates
	}
	return c.registry.ByContentType(req.ContentType)
}

// orderByRecency moves candidates named in recent to the front, most
// recent first, preserving the relative order of the rest. The input
// slice is freshly built by candidates and mutated in place.
func orderByRecency(candidates []ipc.AppCandidate, recent []string) []ipc.AppCandidate {
	if len(recent) == 0 {
		return candidates
	}
	rank := make(map[string]int, len(recent))
	for i, id := range recent {
		if _, seen := rank[id]; !seen {
			rank[id] = i
		}
	}
	position := func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return len(recent)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return position(candidates[i].ID) < position(candidates[j].ID)
	})
	return candidates
}

// firstCandidateOf returns the first id from recent that appears in
// candidates, or "" when none does.
func firstCandidateOf(recent []string, candidates []ipc.AppCandidate) string {
	for _, id := range recent {
		for _, candidate := range candidates {
			if candidate.ID == id {
				return id
			}
		}
	}
	return ""
}
