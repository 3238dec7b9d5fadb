// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
)

// Launcher starts background commands detached from the portal: their
// own session, no inherited stdio, and a reaper goroutine so exited
// children never linger as zombies.
type Launcher struct {
	Logger *slog.Logger
}

// Launch starts the command and returns its pid. The context covers
// the start only; a launched process outlives any request.
func (l *Launcher) Launch(ctx context.Context, command []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(command) == 0 {
		return 0, fmt.Errorf("empty command")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", command[0], err)
	}

	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		if l.Logger != nil {
			l.Logger.Debug("background process exited", "pid", pid, "error", err)
		}
	}()
	return pid, nil
}
