// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// Settings mediates desktop configuration reads and writes. Access is
// decided per fully-qualified key from the store's per-application
// records and the global allow-lists; there is no interactive prompt
// on this path, a key is either listed or it is not.
type Settings struct {
	store   *store.Store
	backend SettingsBackend
	logger  *slog.Logger
}

// NewSettings wires a settings handler over the configuration
// backend.
func NewSettings(st *store.Store, backend SettingsBackend, logger *slog.Logger) *Settings {
	return &Settings{store: st, backend: backend, logger: logger}
}

// Read returns the value of one setting key when the application's
// level permits reading it.
func (s *Settings) Read(ctx context.Context, appID string, req ipc.Request) (*ipc.ReadSettingResponse, error) {
	namespace, key, err := settingKey(req)
	if err != nil {
		return nil, err
	}

	level := s.store.SettingsPermission(appID, namespace+"."+key)
	if !level.AllowsRead() {
		return nil, Errorf(KindPermissionDenied, "reading %s.%s is not permitted", namespace, key)
	}

	value, err := s.backend.Read(ctx, namespace, key)
	if err != nil {
		return nil, Wrap(KindIoError, err, "reading %s.%s", namespace, key)
	}
	encoded, err := codec.Marshal(value)
	if err != nil {
		return nil, Wrap(KindIoError, err, "encoding value of %s.%s", namespace, key)
	}
	return &ipc.ReadSettingResponse{Value: encoded}, nil
}

// Write stores a new value for one setting key when the application's
// level permits writing it. Read-only access is deliberately not
// enough.
func (s *Settings) Write(ctx context.Context, appID string, req ipc.Request) error {
	namespace, key, err := settingKey(req)
	if err != nil {
		return err
	}

	level := s.store.SettingsPermission(appID, namespace+"."+key)
	if !level.AllowsWrite() {
		return Errorf(KindPermissionDenied, "writing %s.%s is not permitted", namespace, key)
	}

	var value any
	if len(req.Value) > 0 {
		if err := codec.Unmarshal(req.Value, &value); err != nil {
			return Wrap(KindIoError, err, "decoding value for %s.%s", namespace, key)
		}
	}
	if err := s.backend.Write(ctx, namespace, key, value); err != nil {
		return Wrap(KindIoError, err, "writing %s.%s", namespace, key)
	}
	s.logger.Info("setting written", "app_id", appID, "namespace", namespace, "key", key)
	return nil
}

func settingKey(req ipc.Request) (namespace, key string, err error) {
	if req.Namespace == "" || req.Key == "" {
		return "", "", Errorf(KindUnsupportedMode, "setting access requires a namespace and key")
	}
	return req.Namespace, req.Key, nil
}
