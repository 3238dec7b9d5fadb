// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// BackgroundRecord describes the most recent background launch for an
// application. One record per application: a new launch replaces the
// old one.
type BackgroundRecord struct {
	AppID     string
	Command   []string
	PID       int
	StartedAt int64
}

// Background mediates "run without a window" requests. The permission
// is a durable per-application boolean; the launch itself goes
// through the injected Launcher so the daemon never blocks on the
// spawned process.
type Background struct {
	store    *store.Store
	launcher Launcher
	consent  ConsentProvider
	gate     *ConsentGate
	sessions *SessionRegistry
	clock    clock.Clock
	logger   *slog.Logger

	mu      sync.Mutex
	records map[string]BackgroundRecord
}

// NewBackground wires a background-launch handler.
func NewBackground(st *store.Store, launcher Launcher, consent ConsentProvider, gate *ConsentGate, sessions *SessionRegistry, clk clock.Clock, logger *slog.Logger) *Background {
	return &Background{
		store:    st,
		launcher: launcher,
		consent:  consent,
		gate:     gate,
		sessions: sessions,
		clock:    clk,
		logger:   logger,
		records:  make(map[string]BackgroundRecord),
	}
}

// Request authorizes and launches a background command for the
// application. A denied prompt leaves no grant and spawns nothing.
func (b *Background) Request(ctx context.Context, appID string, req ipc.Request) (*ipc.BackgroundResult, error) {
	if len(req.Command) == 0 {
		return nil, Errorf(KindUnsupportedMode, "background request requires a command")
	}

	if err := b.authorize(ctx, appID, req.Reason); err != nil {
		return nil, err
	}

	pid, err := b.launcher.Launch(ctx, req.Command)
	if err != nil {
		return nil, Wrap(KindIoError, err, "launching background command")
	}

	b.mu.Lock()
	b.records[appID] = BackgroundRecord{
		AppID:     appID,
		Command:   append([]string(nil), req.Command...),
		PID:       pid,
		StartedAt: b.clock.Now().Unix(),
	}
	b.mu.Unlock()

	b.logger.Info("background command launched", "app_id", appID, "pid", pid)
	return &ipc.BackgroundResult{AppID: appID}, nil
}

// Record returns the latest background launch for an application and
// whether one exists.
func (b *Background) Record(appID string) (BackgroundRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[appID]
	return record, ok
}

func (b *Background) authorize(ctx context.Context, appID, reason string) error {
	_, err := b.gate.Serialize(appID, "background", func() (any, error) {
		if b.store.HasBackground(appID) {
			return nil, nil
		}

		body := fmt.Sprintf("%s wants to run in the background", appID)
		if reason != "" {
			body = fmt.Sprintf("%s wants to run in the background: %s", appID, reason)
		}
		allowed, err := Prompt(ctx, b.gate, func(ctx context.Context) (bool, error) {
			return b.consent.ConfirmAccess(ctx, appID, "Background activity", body)
		})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, Errorf(KindPermissionDenied, "background activity declined")
		}

		if err := b.store.GrantBackground(appID); err != nil {
			return nil, Wrap(KindIoError, err, "persisting background grant")
		}
		b.sessions.RecordGrant(appID, "background")
		return nil, nil
	})
	return err
}
