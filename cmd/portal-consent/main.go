// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// portal-consent is a terminal consent agent for the portal daemon.
// It serves the consent socket and answers the daemon's decision
// requests with interactive forms: yes/no confirmations, file
// pickers, application choosers, and coordinate entry for colors and
// capture areas.
//
// A desktop shell would normally provide this surface with native
// dialogs; this agent is the reference implementation and the one
// used in headless and development setups. With --auto-approve every
// request is granted without prompting, for test rigs where no
// terminal is attached.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/portal/lib/config"
	"github.com/bureau-foundation/portal/lib/service"
	"github.com/bureau-foundation/portal/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		socketPath  string
		autoApprove bool
		debug       bool
	)
	defaults := config.Default()

	flagSet := pflag.NewFlagSet("portal-consent", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", defaults.Sockets.Consent, "consent socket path to serve")
	flagSet.BoolVar(&autoApprove, "auto-approve", false, "grant every request without prompting (development only)")
	flagSet.BoolVar(&debug, "debug", false, "log at debug level")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("portal-consent %s\n", version.Info())
		return nil
	}
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			flagSet.PrintDefaults()
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		flagSet.PrintDefaults()
		return nil
	}

	if !autoApprove && !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal; run from an interactive shell or pass --auto-approve")
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := service.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	agent := &Agent{AutoApprove: autoApprove, Logger: logger}
	server := service.NewSocketServer(socketPath, logger)
	agent.Register(server)

	logger.Info("consent agent running", "socket", socketPath, "auto_approve", autoApprove)
	return server.Serve(ctx)
}
