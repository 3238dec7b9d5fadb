// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/bureau-foundation/portal/lib/ipc"
)

// SystemdSessions implements session inhibition by holding a
// systemd-inhibit child process per inhibition. Killing the child
// releases the lock; if the portal dies, the kernel reaps the
// children and every lock falls away with it.
type SystemdSessions struct {
	Logger *slog.Logger

	mu      sync.Mutex
	holders map[string]*exec.Cmd
}

// Inhibit takes systemd inhibitor locks matching the flags. SwitchUser
// has no systemd equivalent and maps onto the shutdown lock, the
// strictest available approximation.
func (s *SystemdSessions) Inhibit(ctx context.Context, id, appID, reason string, flags ipc.InhibitFlags) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var what []string
	if flags.Logout || flags.SwitchUser {
		what = append(what, "shutdown")
	}
	if flags.Suspend {
		what = append(what, "sleep")
	}
	if flags.Idle {
		what = append(what, "idle")
	}
	if len(what) == 0 {
		return fmt.Errorf("no inhibitable operations in flags")
	}
	if reason == "" {
		reason = "requested by application"
	}

	cmd := exec.Command("systemd-inhibit",
		"--what="+strings.Join(what, ":"),
		"--who="+appID,
		"--why="+reason,
		"--mode=block",
		"sleep", "infinity",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting systemd-inhibit: %w", err)
	}

	s.mu.Lock()
	if s.holders == nil {
		s.holders = make(map[string]*exec.Cmd)
	}
	s.holders[id] = cmd
	s.mu.Unlock()

	if s.Logger != nil {
		s.Logger.Debug("inhibitor lock taken", "id", id, "what", what, "pid", cmd.Process.Pid)
	}
	return nil
}

// Uninhibit releases the lock by terminating its holder process.
// Unknown ids are a no-op.
func (s *SystemdSessions) Uninhibit(ctx context.Context, id string) error {
	s.mu.Lock()
	cmd, ok := s.holders[id]
	delete(s.holders, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("terminating inhibitor holder: %w", err)
	}
	// Reap; the exit status of a killed sleep is not interesting.
	go cmd.Wait()
	return nil
}
