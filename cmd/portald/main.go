// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command portald is the portal daemon: it owns the permission store
// and serves the client, admin, and capability surfaces over Unix
// sockets. Consent decisions are delegated to a separately running
// consent agent.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/portal/broker"
	"github.com/bureau-foundation/portal/host"
	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/config"
	"github.com/bureau-foundation/portal/lib/service"
	"github.com/bureau-foundation/portal/lib/version"
	"github.com/bureau-foundation/portal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to portal.yaml (default: $PORTAL_CONFIG)")
	flag.BoolVar(&debug, "debug", false, "log at debug level")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("portald %s\n", version.Info())
		return nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := service.NewLogger(level)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	userDirs := store.DefaultUserDirs(cfg.Paths.Home)

	access, err := store.LoadSettingsAccess(cfg.Settings.AccessFile)
	if err != nil {
		return fmt.Errorf("loading settings access lists: %w", err)
	}

	permissions := store.NewStore(filepath.Join(cfg.Paths.State, "permissions.json"), userDirs, access, clk, logger)
	if err := permissions.Load(); err != nil {
		return fmt.Errorf("loading permission store: %w", err)
	}
	prefs := store.NewPreferences(filepath.Join(cfg.Paths.State, "preferences.json"), logger)
	if err := prefs.Load(); err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	registry, err := host.LoadRegistry(cfg.Applications)
	if err != nil {
		return fmt.Errorf("loading application registry: %w", err)
	}

	consent := broker.NewSocketConsent(cfg.Sockets.Consent)
	gate := broker.NewConsentGate(clk, cfg.Consent.Timeout.Std())
	sessions := broker.NewSessionRegistry(clk, cfg.Sessions.IdleTimeout.Std(), logger)
	dispatcher := broker.NewDispatcher(clk, sessions, logger)
	defer dispatcher.Shutdown()

	inhibitor := broker.NewInhibitor(&host.SystemdSessions{Logger: logger}, clk, logger)
	server := broker.NewServer(
		dispatcher,
		broker.NewFileChooser(permissions, prefs, userDirs, consent, gate, sessions, logger),
		broker.NewScreenshot(permissions, consent, gate, &host.Capturer{}, sessions, clk, cfg.Paths.Pictures, logger),
		broker.NewAccount(host.Identity{}, consent, gate, logger),
		broker.NewAppChooser(prefs, registry, consent, gate, logger),
		inhibitor,
		broker.NewBackground(permissions, &host.Launcher{Logger: logger}, consent, gate, sessions, clk, logger),
		broker.NewSettings(permissions, &host.GSettings{}, logger),
		broker.ResolverFromConfig(cfg.Callers),
		logger,
	)
	admin := broker.NewAdmin(permissions, dispatcher, sessions, inhibitor, clk, logger)

	clientSocket := service.NewSocketServer(cfg.Sockets.Client, logger)
	server.Register(clientSocket)
	adminSocket := service.NewSocketServer(cfg.Sockets.Admin, logger)
	admin.Register(adminSocket)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return clientSocket.Serve(groupCtx) })
	group.Go(func() error { return adminSocket.Serve(groupCtx) })
	group.Go(func() error {
		sessions.Run(groupCtx, cfg.Sessions.SweepInterval.Std())
		return nil
	})
	group.Go(func() error {
		// Reload the permission file when something else edits it.
		if err := permissions.Watch(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	logger.Info("portal daemon running",
		"client_socket", cfg.Sockets.Client,
		"admin_socket", cfg.Sockets.Admin,
		"state_dir", cfg.Paths.State,
		"consent_timeout", time.Duration(cfg.Consent.Timeout).String(),
	)
	return group.Wait()
}
