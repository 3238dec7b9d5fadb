// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/ipc"
)

// Session is one application's logical connection to the portal.
// Created on the application's first request, removed on explicit end
// (the shell's session-end notification) or idle expiry. The granted
// set records which capability keys consent has allowed during this
// session; it is bookkeeping for inspection, never a durable
// authority.
type Session struct {
	ID        string
	AppID     string
	CreatedAt time.Time

	lastSeen time.Time
	granted  map[string]struct{}
}

// SessionRegistry tracks active sessions, keyed by application id.
// All mutation happens through the registry's methods under one
// mutex; the dispatcher is the only writer apart from the idle sweep.
type SessionRegistry struct {
	clock       clock.Clock
	logger      *slog.Logger
	idleTimeout time.Duration

	mu    sync.Mutex
	byApp map[string]*Session
}

// NewSessionRegistry creates an empty registry. Sessions idle longer
// than idleTimeout are removed by Run's periodic sweep.
func NewSessionRegistry(clk clock.Clock, idleTimeout time.Duration, logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		clock:       clk,
		logger:      logger,
		idleTimeout: idleTimeout,
		byApp:       make(map[string]*Session),
	}
}

// Ensure returns the session for appID, creating it on first use, and
// marks it as active now.
func (r *SessionRegistry) Ensure(appID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	session, ok := r.byApp[appID]
	if !ok {
		session = &Session{
			ID:        uuid.NewString(),
			AppID:     appID,
			CreatedAt: now,
			granted:   make(map[string]struct{}),
		}
		r.byApp[appID] = session
		r.logger.Info("session created", "app_id", appID, "session_id", session.ID)
	}
	session.lastSeen = now
	return session
}

// RecordGrant marks a capability key as consented during appID's
// session. No-op when the application has no session (it always does
// by the time a grant happens, but the sweep may race).
func (r *SessionRegistry) RecordGrant(appID, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session, ok := r.byApp[appID]; ok {
		session.granted[key] = struct{}{}
	}
}

// End removes appID's session. Reports whether one existed.
func (r *SessionRegistry) End(appID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.byApp[appID]
	if !ok {
		return false
	}
	delete(r.byApp, appID)
	r.logger.Info("session ended", "app_id", appID, "session_id", session.ID)
	return true
}

// Count returns the number of active sessions.
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byApp)
}

// List returns a snapshot of active sessions for inspection, ordered
// by application id.
func (r *SessionRegistry) List() []ipc.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]ipc.SessionInfo, 0, len(r.byApp))
	for _, session := range r.byApp {
		granted := make([]string, 0, len(session.granted))
		for key := range session.granted {
			granted = append(granted, key)
		}
		sort.Strings(granted)
		sessions = append(sessions, ipc.SessionInfo{
			ID:        session.ID,
			AppID:     session.AppID,
			CreatedAt: session.CreatedAt.Unix(),
			LastSeen:  session.lastSeen.Unix(),
			Granted:   granted,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].AppID < sessions[j].AppID
	})
	return sessions
}

// Run sweeps idle sessions every sweepInterval until ctx is done.
func (r *SessionRegistry) Run(ctx context.Context, sweepInterval time.Duration) {
	ticker := r.clock.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep removes sessions that have been idle past the timeout.
func (r *SessionRegistry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.clock.Now().Add(-r.idleTimeout)
	for appID, session := range r.byApp {
		if session.lastSeen.Before(cutoff) {
			delete(r.byApp, appID)
			r.logger.Info("session expired",
				"app_id", appID,
				"session_id", session.ID,
				"idle_since", session.lastSeen,
			)
		}
	}
}
