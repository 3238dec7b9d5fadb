// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/lib/service"
	"github.com/bureau-foundation/portal/store"
)

// Admin is the portal's trusted surface for portalctl and the desktop
// shell. It exposes inspection (status, grants, sessions,
// inhibitions) and the lifecycle notifications that release
// client-held resources: a destroyed window cancels its in-flight
// requests, an ended session drops the session record and its
// inhibitions.
//
// The admin socket sits outside the sandboxes; callers are not mapped
// through the application registry.
type Admin struct {
	store      *store.Store
	dispatcher *Dispatcher
	sessions   *SessionRegistry
	inhibitor  *Inhibitor
	clock      clock.Clock
	startedAt  time.Time
	logger     *slog.Logger
}

// NewAdmin wires an admin surface. Uptime is measured from the call.
func NewAdmin(st *store.Store, dispatcher *Dispatcher, sessions *SessionRegistry, inhibitor *Inhibitor, clk clock.Clock, logger *slog.Logger) *Admin {
	return &Admin{
		store:      st,
		dispatcher: dispatcher,
		sessions:   sessions,
		inhibitor:  inhibitor,
		clock:      clk,
		startedAt:  clk.Now(),
		logger:     logger,
	}
}

// Register installs the admin actions on a socket server.
func (a *Admin) Register(server *service.SocketServer) {
	server.Handle("status", a.action(a.status))
	server.Handle("list-grants", a.action(a.listGrants))
	server.Handle("list-sessions", a.action(a.listSessions))
	server.Handle("list-inhibitions", a.action(a.listInhibitions))
	server.Handle("uninhibit", a.action(a.uninhibit))
	server.Handle("window-closed", a.action(a.windowClosed))
	server.Handle("session-end", a.action(a.sessionEnd))
}

func (a *Admin) action(handler func(ctx context.Context, req ipc.AdminRequest) (any, error)) service.ActionFunc {
	return func(ctx context.Context, _ service.Peer, raw []byte) (any, error) {
		var req ipc.AdminRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, Wrap(KindIoError, err, "decoding request")
		}
		return handler(ctx, req)
	}
}

func (a *Admin) status(_ context.Context, _ ipc.AdminRequest) (any, error) {
	return ipc.StatusResponse{
		UptimeSeconds:   int64(a.clock.Now().Sub(a.startedAt) / time.Second),
		Sessions:        a.sessions.Count(),
		PendingRequests: a.dispatcher.PendingCount(),
		Inhibitions:     a.inhibitor.Count(),
	}, nil
}

func (a *Admin) listGrants(_ context.Context, req ipc.AdminRequest) (any, error) {
	appIDs := a.store.AppIDs()
	if req.AppID != "" {
		appIDs = []string{req.AppID}
	}
	sort.Strings(appIDs)

	var apps []ipc.AppGrants
	for _, appID := range appIDs {
		record := a.store.Record(appID)
		if record == nil {
			continue
		}
		apps = append(apps, grantsOf(appID, record))
	}
	return ipc.GrantsResponse{Apps: apps}, nil
}

func (a *Admin) listSessions(_ context.Context, _ ipc.AdminRequest) (any, error) {
	return ipc.SessionsResponse{Sessions: a.sessions.List()}, nil
}

func (a *Admin) listInhibitions(_ context.Context, _ ipc.AdminRequest) (any, error) {
	return ipc.InhibitionsResponse{Inhibitions: a.inhibitor.List()}, nil
}

func (a *Admin) uninhibit(ctx context.Context, req ipc.AdminRequest) (any, error) {
	if req.InhibitionID == "" {
		return nil, Errorf(KindUnsupportedMode, "uninhibit requires an inhibition id")
	}
	return nil, a.inhibitor.Remove(ctx, req.InhibitionID)
}

func (a *Admin) windowClosed(_ context.Context, req ipc.AdminRequest) (any, error) {
	if req.AppID == "" || req.ParentWindow == "" {
		return nil, Errorf(KindUnsupportedMode, "window-closed requires app_id and parent_window")
	}
	cancelled := a.dispatcher.CancelWindow(req.AppID, req.ParentWindow)
	a.logger.Info("window closed",
		"app_id", req.AppID,
		"parent_window", req.ParentWindow,
		"cancelled", cancelled,
	)
	return nil, nil
}

func (a *Admin) sessionEnd(ctx context.Context, req ipc.AdminRequest) (any, error) {
	if req.AppID == "" {
		return nil, Errorf(KindUnsupportedMode, "session-end requires an app_id")
	}
	ended := a.sessions.End(req.AppID)
	released := a.inhibitor.ReleaseApp(ctx, req.AppID)
	dropped := a.dispatcher.ReleaseApp(req.AppID)
	a.logger.Info("session ended",
		"app_id", req.AppID,
		"existed", ended,
		"inhibitions_released", released,
		"handles_dropped", dropped,
	)
	return nil, nil
}

func grantsOf(appID string, record *store.PermissionRecord) ipc.AppGrants {
	grants := ipc.AppGrants{
		AppID:      appID,
		Background: record.Background,
		Screenshot: record.Screenshot,
	}
	for _, grant := range record.Filesystem {
		grants.Filesystem = append(grants.Filesystem, ipc.FilesystemGrant{
			Path:      grant.Path,
			Access:    string(grant.Access),
			GrantedAt: grant.GrantedAt.Unix(),
		})
	}
	if len(record.Settings) > 0 {
		grants.Settings = make(map[string]string, len(record.Settings))
		for key, level := range record.Settings {
			grants.Settings[key] = string(level)
		}
	}
	return grants
}
