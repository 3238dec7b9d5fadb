// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/config"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/lib/service"
	"github.com/bureau-foundation/portal/lib/testutil"
	"github.com/bureau-foundation/portal/store"
)

// portalFixture runs a full client surface on a real socket with
// scripted consent and effectors behind it.
type portalFixture struct {
	env        *env
	client     *service.Client
	dispatcher *Dispatcher
}

func startPortal(t *testing.T) *portalFixture {
	t.Helper()
	e := newEnv(t)
	logger := testLogger()

	dispatcher := NewDispatcher(e.clk, e.sessions, logger)
	t.Cleanup(dispatcher.Shutdown)

	server := NewServer(
		dispatcher,
		NewFileChooser(e.store, e.prefs, e.userDirs, e.consent, e.gate, e.sessions, logger),
		NewScreenshot(e.store, e.consent, e.gate, &fakeCapturer{outputs: twoOutputs()}, e.sessions, e.clk, t.TempDir(), logger),
		NewAccount(&fakeIdentity{info: UserInfo{Name: "Test User", Username: "tester"}}, e.consent, e.gate, logger),
		NewAppChooser(e.prefs, pdfRegistry(), e.consent, e.gate, logger),
		NewInhibitor(&fakeSessionManager{}, e.clk, logger),
		newBackground(e, &fakeLauncher{}),
		NewSettings(e.store, &fakeBackend{}, logger),
		func(service.Peer) (string, error) { return testApp, nil },
		logger,
	)

	socketPath := filepath.Join(testutil.SocketDir(t), "client.sock")
	socketServer := service.NewSocketServer(socketPath, logger)
	server.Register(socketServer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := socketServer.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "server shutdown")
	})
	waitForSocket(t, socketPath)

	return &portalFixture{
		env:        e,
		client:     service.NewClient(socketPath),
		dispatcher: dispatcher,
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never came up", path)
}

// awaitResult long-polls the handle and decodes the capability result.
func awaitResult(t *testing.T, client *service.Client, handle string, result any) ipc.AwaitResponse {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var response ipc.AwaitResponse
	if err := client.Call(ctx, "await", map[string]any{"handle": handle}, &response); err != nil {
		t.Fatalf("await: %v", err)
	}
	if result != nil && len(response.Result) > 0 {
		if err := codec.Unmarshal(response.Result, result); err != nil {
			t.Fatalf("decoding await result: %v", err)
		}
	}
	return response
}

func TestOpenFileOverSocket(t *testing.T) {
	fixture := startPortal(t)
	fixture.env.consent.paths = []string{"/home/tester/Documents/report.txt"}

	var submit ipc.SubmitResponse
	if err := fixture.client.Call(context.Background(), "open-file", map[string]any{
		"current_folder": "/home/tester/Documents",
		"parent_window":  "window-1",
	}, &submit); err != nil {
		t.Fatalf("open-file: %v", err)
	}
	if submit.Handle == "" {
		t.Fatal("no handle returned")
	}

	var opened ipc.OpenFileResult
	response := awaitResult(t, fixture.client, submit.Handle, &opened)
	if response.State != "resolved" || response.Code != "" {
		t.Fatalf("await response = %+v", response)
	}
	if len(opened.URIs) != 1 || opened.URIs[0] != "file:///home/tester/Documents/report.txt" {
		t.Fatalf("URIs = %v", opened.URIs)
	}
}

func TestDeniedRequestCodeOverSocket(t *testing.T) {
	fixture := startPortal(t)
	fixture.env.consent.allow = false

	var submit ipc.SubmitResponse
	if err := fixture.client.Call(context.Background(), "open-file", map[string]any{
		"current_folder": "/srv/project",
	}, &submit); err != nil {
		t.Fatalf("open-file: %v", err)
	}

	response := awaitResult(t, fixture.client, submit.Handle, nil)
	if response.State != "resolved" {
		t.Fatalf("state = %q", response.State)
	}
	if response.Code != "permission-denied" {
		t.Fatalf("code = %q, want permission-denied", response.Code)
	}
}

func TestCancelOverSocket(t *testing.T) {
	fixture := startPortal(t)
	fixture.env.consent.mu.Lock()
	fixture.env.consent.block = make(chan struct{})
	fixture.env.consent.mu.Unlock()

	var submit ipc.SubmitResponse
	if err := fixture.client.Call(context.Background(), "get-user-info", nil, &submit); err != nil {
		t.Fatalf("get-user-info: %v", err)
	}

	// Let the consent flow actually suspend before withdrawing.
	waitForPending(t, fixture.dispatcher)
	if err := fixture.client.Call(context.Background(), "cancel", map[string]any{
		"handle": submit.Handle,
	}, nil); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	response := awaitResult(t, fixture.client, submit.Handle, nil)
	if response.State != "cancelled" {
		t.Fatalf("state = %q, want cancelled", response.State)
	}
}

func waitForPending(t *testing.T, dispatcher *Dispatcher) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if dispatcher.PendingCount() > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("request never became pending")
}

func TestInhibitSynchronousOverSocket(t *testing.T) {
	fixture := startPortal(t)

	var inhibit ipc.InhibitResponse
	if err := fixture.client.Call(context.Background(), "inhibit", map[string]any{
		"reason": "presentation running",
		"flags":  map[string]any{"idle": true},
	}, &inhibit); err != nil {
		t.Fatalf("inhibit: %v", err)
	}
	if inhibit.ID == "" {
		t.Fatal("no inhibition id")
	}

	if err := fixture.client.Call(context.Background(), "uninhibit", map[string]any{
		"inhibition_id": inhibit.ID,
	}, nil); err != nil {
		t.Fatalf("uninhibit: %v", err)
	}
}

func TestAdminSurfaceOverSocket(t *testing.T) {
	e := newEnv(t)
	logger := testLogger()
	dispatcher := NewDispatcher(e.clk, e.sessions, logger)
	t.Cleanup(dispatcher.Shutdown)
	inhibitor := NewInhibitor(&fakeSessionManager{}, e.clk, logger)
	admin := NewAdmin(e.store, dispatcher, e.sessions, inhibitor, e.clk, logger)

	socketPath := filepath.Join(testutil.SocketDir(t), "admin.sock")
	socketServer := service.NewSocketServer(socketPath, logger)
	admin.Register(socketServer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		socketServer.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "admin server shutdown")
	})
	waitForSocket(t, socketPath)
	client := service.NewClient(socketPath)

	e.sessions.Ensure(testApp)
	if err := e.store.GrantFilesystem(testApp, "/srv/project", store.AccessRead); err != nil {
		t.Fatalf("GrantFilesystem: %v", err)
	}

	var status ipc.StatusResponse
	if err := client.Call(context.Background(), "status", nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Sessions != 1 {
		t.Fatalf("status = %+v", status)
	}

	var grants ipc.GrantsResponse
	if err := client.Call(context.Background(), "list-grants", nil, &grants); err != nil {
		t.Fatalf("list-grants: %v", err)
	}
	if len(grants.Apps) != 1 || len(grants.Apps[0].Filesystem) != 1 ||
		grants.Apps[0].Filesystem[0].Path != "/srv/project" {
		t.Fatalf("grants = %+v", grants)
	}

	if err := client.Call(context.Background(), "session-end", map[string]any{
		"app_id": testApp,
	}, nil); err != nil {
		t.Fatalf("session-end: %v", err)
	}
	if e.sessions.Count() != 0 {
		t.Fatal("session survived session-end")
	}
}

func TestResolverFromConfig(t *testing.T) {
	resolve := ResolverFromConfig([]config.CallerMapping{
		{UID: 20001, AppID: testApp},
	})

	appID, err := resolve(service.Peer{UID: 20001})
	if err != nil || appID != testApp {
		t.Fatalf("resolve = %q, %v", appID, err)
	}

	if _, err := resolve(service.Peer{UID: 20002}); KindOf(err) != KindPermissionDenied {
		t.Fatalf("unknown uid kind = %q, want permission-denied", KindOf(err))
	}

	// No mappings: development mode, everything is "host".
	open := ResolverFromConfig(nil)
	if appID, err := open(service.Peer{UID: 12345}); err != nil || appID != "host" {
		t.Fatalf("open resolve = %q, %v", appID, err)
	}
}
