// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// portalctl inspects and manages a running portal daemon over its
// admin socket: daemon status, durable grants, active sessions, and
// inhibitions. Compositors use the window-closed and session-end
// subcommands to notify the daemon of surface and client lifecycle.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/portal/lib/config"
	"github.com/bureau-foundation/portal/lib/ipc"
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
	var socketPath string
	defaults := config.Default()

	flagSet := pflag.NewFlagSet("portalctl", pflag.ContinueOnError)
	flagSet.StringVar(&socketPath, "socket", defaults.Sockets.Admin, "path to the portal admin socket")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("portalctl %s\n", version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printUsage()
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage()
		return nil
	}

	args := flagSet.Args()
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("subcommand required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client := service.NewClient(socketPath)

	switch args[0] {
	case "status":
		return status(ctx, client)
	case "grants":
		appID := ""
		if len(args) > 1 {
			appID = args[1]
		}
		return grants(ctx, client, appID)
	case "sessions":
		return sessions(ctx, client)
	case "inhibitions":
		return inhibitions(ctx, client)
	case "uninhibit":
		if len(args) != 2 {
			return fmt.Errorf("usage: portalctl uninhibit <inhibition-id>")
		}
		return client.Call(ctx, "uninhibit", map[string]any{"inhibition_id": args[1]}, nil)
	case "window-closed":
		if len(args) != 3 {
			return fmt.Errorf("usage: portalctl window-closed <app-id> <window>")
		}
		return client.Call(ctx, "window-closed", map[string]any{
			"app_id":        args[1],
			"parent_window": args[2],
		}, nil)
	case "session-end":
		if len(args) != 2 {
			return fmt.Errorf("usage: portalctl session-end <app-id>")
		}
		return client.Call(ctx, "session-end", map[string]any{"app_id": args[1]}, nil)
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func status(ctx context.Context, client *service.Client) error {
	var response ipc.StatusResponse
	if err := client.Call(ctx, "status", nil, &response); err != nil {
		return err
	}
	fmt.Printf("uptime:           %s\n", (time.Duration(response.UptimeSeconds) * time.Second).String())
	fmt.Printf("sessions:         %d\n", response.Sessions)
	fmt.Printf("pending requests: %d\n", response.PendingRequests)
	fmt.Printf("inhibitions:      %d\n", response.Inhibitions)
	return nil
}

func grants(ctx context.Context, client *service.Client, appID string) error {
	fields := map[string]any{}
	if appID != "" {
		fields["app_id"] = appID
	}
	var response ipc.GrantsResponse
	if err := client.Call(ctx, "list-grants", fields, &response); err != nil {
		return err
	}
	if len(response.Apps) == 0 {
		fmt.Println("no grants")
		return nil
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "APP\tKIND\tDETAIL\tGRANTED")
	for _, app := range response.Apps {
		for _, grant := range app.Filesystem {
			fmt.Fprintf(writer, "%s\tfilesystem\t%s (%s)\t%s\n",
				app.AppID, grant.Path, grant.Access, formatUnix(grant.GrantedAt))
		}
		if app.Background {
			fmt.Fprintf(writer, "%s\tbackground\t\t\n", app.AppID)
		}
		if app.Screenshot {
			fmt.Fprintf(writer, "%s\tscreenshot\t\t\n", app.AppID)
		}
		for key, level := range app.Settings {
			fmt.Fprintf(writer, "%s\tsettings\t%s: %s\t\n", app.AppID, key, level)
		}
	}
	return writer.Flush()
}

func sessions(ctx context.Context, client *service.Client) error {
	var response ipc.SessionsResponse
	if err := client.Call(ctx, "list-sessions", nil, &response); err != nil {
		return err
	}
	if len(response.Sessions) == 0 {
		fmt.Println("no active sessions")
		return nil
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "APP\tSESSION\tCREATED\tLAST SEEN\tSESSION GRANTS")
	for _, session := range response.Sessions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			session.AppID, session.ID,
			formatUnix(session.CreatedAt), formatUnix(session.LastSeen),
			strings.Join(session.Granted, ", "))
	}
	return writer.Flush()
}

func inhibitions(ctx context.Context, client *service.Client) error {
	var response ipc.InhibitionsResponse
	if err := client.Call(ctx, "list-inhibitions", nil, &response); err != nil {
		return err
	}
	if len(response.Inhibitions) == 0 {
		fmt.Println("no active inhibitions")
		return nil
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tAPP\tLOCKS\tREASON\tSINCE")
	for _, inhibition := range response.Inhibitions {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			inhibition.ID, inhibition.AppID,
			flagNames(inhibition.Flags), inhibition.Reason,
			formatUnix(inhibition.CreatedAt))
	}
	return writer.Flush()
}

func flagNames(flags ipc.InhibitFlags) string {
	var names []string
	if flags.Logout {
		names = append(names, "logout")
	}
	if flags.SwitchUser {
		names = append(names, "switch-user")
	}
	if flags.Suspend {
		names = append(names, "suspend")
	}
	if flags.Idle {
		names = append(names, "idle")
	}
	return strings.Join(names, ",")
}

func formatUnix(seconds int64) string {
	if seconds == 0 {
		return ""
	}
	return time.Unix(seconds, 0).Local().Format("2006-01-02 15:04:05")
}

func printUsage() {
	fmt.Fprint(os.Stderr, `portalctl — manage a running portal daemon

Usage:
  portalctl [--socket PATH] <subcommand> [args]

Subcommands:
  status                             daemon uptime and counters
  grants [app-id]                    durable grants, optionally one app
  sessions                           active client sessions
  inhibitions                        active session inhibitions
  uninhibit <inhibition-id>          drop an inhibition
  window-closed <app-id> <window>    cancel requests tied to a window
  session-end <app-id>               end an application's session

Flags:
  --socket PATH    portal admin socket (default from configuration)
  --version        print version information
  -h, --help       show this help
`)
}
