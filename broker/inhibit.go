// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/ipc"
)

type inhibition struct {
	id        string
	appID     string
	reason    string
	flags     ipc.InhibitFlags
	createdAt int64
}

// Inhibitor tracks session inhibitions (block logout, suspend, idle,
// user switching) per application. Inhibiting needs no consent
// prompt: it is reversible and visible in the admin surface, and the
// user can always remove one there.
type Inhibitor struct {
	session SessionManager
	clock   clock.Clock
	logger  *slog.Logger

	mu     sync.Mutex
	active map[string]*inhibition
}

// NewInhibitor wires an inhibition handler over the session manager.
func NewInhibitor(session SessionManager, clk clock.Clock, logger *slog.Logger) *Inhibitor {
	return &Inhibitor{
		session: session,
		clock:   clk,
		logger:  logger,
		active:  make(map[string]*inhibition),
	}
}

// Inhibit registers a new inhibition and returns its id. At least one
// flag must be set; an inhibition that blocks nothing is a caller
// bug.
func (i *Inhibitor) Inhibit(ctx context.Context, appID string, req ipc.Request) (*ipc.InhibitResponse, error) {
	flags := req.Flags
	if !flags.Logout && !flags.SwitchUser && !flags.Suspend && !flags.Idle {
		return nil, Errorf(KindUnsupportedMode, "inhibit requires at least one flag")
	}

	id := uuid.NewString()
	if err := i.session.Inhibit(ctx, id, appID, req.Reason, flags); err != nil {
		return nil, Wrap(KindIoError, err, "registering inhibition")
	}

	i.mu.Lock()
	i.active[id] = &inhibition{
		id:        id,
		appID:     appID,
		reason:    req.Reason,
		flags:     flags,
		createdAt: i.clock.Now().Unix(),
	}
	i.mu.Unlock()

	i.logger.Info("inhibition registered", "app_id", appID, "id", id, "reason", req.Reason)
	return &ipc.InhibitResponse{ID: id}, nil
}

// Uninhibit removes the application's inhibition. Unknown ids are a
// no-op so releases can be retried safely; an id owned by another
// application is an error.
func (i *Inhibitor) Uninhibit(ctx context.Context, appID, id string) error {
	i.mu.Lock()
	entry, ok := i.active[id]
	if ok && entry.appID != appID {
		i.mu.Unlock()
		return Errorf(KindPermissionDenied, "inhibition %s belongs to another application", id)
	}
	delete(i.active, id)
	i.mu.Unlock()

	if !ok {
		return nil
	}
	return i.release(ctx, entry)
}

// Remove drops an inhibition regardless of owner. This backs the
// admin surface, where the user overrides applications.
func (i *Inhibitor) Remove(ctx context.Context, id string) error {
	i.mu.Lock()
	entry, ok := i.active[id]
	delete(i.active, id)
	i.mu.Unlock()

	if !ok {
		return nil
	}
	return i.release(ctx, entry)
}

// ReleaseApp drops all of one application's inhibitions, returning
// how many were released. Called when the application's session ends.
func (i *Inhibitor) ReleaseApp(ctx context.Context, appID string) int {
	i.mu.Lock()
	var entries []*inhibition
	for id, entry := range i.active {
		if entry.appID == appID {
			entries = append(entries, entry)
			delete(i.active, id)
		}
	}
	i.mu.Unlock()

	for _, entry := range entries {
		if err := i.release(ctx, entry); err != nil {
			i.logger.Warn("releasing inhibition failed", "id", entry.id, "error", err)
		}
	}
	return len(entries)
}

// Count returns the number of active inhibitions.
func (i *Inhibitor) Count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.active)
}

// List returns the active inhibitions sorted by creation time, oldest
// first.
func (i *Inhibitor) List() []ipc.InhibitionInfo {
	i.mu.Lock()
	infos := make([]ipc.InhibitionInfo, 0, len(i.active))
	for _, entry := range i.active {
		infos = append(infos, ipc.InhibitionInfo{
			ID:        entry.id,
			AppID:     entry.appID,
			Reason:    entry.reason,
			Flags:     entry.flags,
			CreatedAt: entry.createdAt,
		})
	}
	i.mu.Unlock()

	sort.Slice(infos, func(a, b int) bool {
		if infos[a].CreatedAt != infos[b].CreatedAt {
			return infos[a].CreatedAt < infos[b].CreatedAt
		}
		return infos[a].ID < infos[b].ID
	})
	return infos
}

func (i *Inhibitor) release(ctx context.Context, entry *inhibition) error {
	if err := i.session.Uninhibit(ctx, entry.id); err != nil {
		return Wrap(KindIoError, err, "releasing inhibition %s", entry.id)
	}
	i.logger.Info("inhibition released", "app_id", entry.appID, "id", entry.id)
	return nil
}
