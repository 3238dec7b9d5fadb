// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/bureau-foundation/portal/broker"
)

// Identity resolves the portal user's identity from the account
// database and the session environment.
type Identity struct{}

// UserInfo returns the current user's identity. The display name
// falls back to the username when the GECOS field is empty; the
// avatar is the conventional ~/.face file when present.
func (Identity) UserInfo(ctx context.Context) (broker.UserInfo, error) {
	current, err := user.Current()
	if err != nil {
		return broker.UserInfo{}, err
	}

	// GECOS may carry office and phone fields after the full name.
	name, _, _ := strings.Cut(current.Name, ",")
	if name == "" {
		name = current.Username
	}

	info := broker.UserInfo{
		Name:           name,
		Username:       current.Username,
		Locale:         locale(),
		KeyboardLayout: os.Getenv("XKB_DEFAULT_LAYOUT"),
		SessionID:      os.Getenv("XDG_SESSION_ID"),
	}

	face := filepath.Join(current.HomeDir, ".face")
	if _, err := os.Stat(face); err == nil {
		info.Avatar = face
	}
	return info, nil
}

func locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
