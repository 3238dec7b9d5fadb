// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeClockAt() *clock.FakeClock {
	return clock.Fake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

const consentTimeout = 2 * time.Minute

// env bundles the collaborators most handler tests need.
type env struct {
	clk      *clock.FakeClock
	store    *store.Store
	prefs    *store.Preferences
	userDirs store.UserDirs
	consent  *fakeConsent
	gate     *ConsentGate
	sessions *SessionRegistry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	clk := fakeClockAt()
	logger := testLogger()

	userDirs := store.UserDirs{
		Home:      "/home/tester",
		Documents: "/home/tester/Documents",
		Downloads: "/home/tester/Downloads",
		Pictures:  "/home/tester/Pictures",
		Music:     "/home/tester/Music",
		Videos:    "/home/tester/Videos",
	}

	st := store.NewStore(filepath.Join(dir, "permissions.json"), userDirs, nil, clk, logger)
	if err := st.Load(); err != nil {
		t.Fatalf("loading store: %v", err)
	}
	prefs := store.NewPreferences(filepath.Join(dir, "preferences.json"), logger)
	if err := prefs.Load(); err != nil {
		t.Fatalf("loading preferences: %v", err)
	}

	return &env{
		clk:      clk,
		store:    st,
		prefs:    prefs,
		userDirs: userDirs,
		consent:  &fakeConsent{},
		gate:     NewConsentGate(clk, consentTimeout),
		sessions: NewSessionRegistry(clk, 30*time.Minute, logger),
	}
}

// fakeConsent is a scripted ConsentProvider. Zero value denies
// confirms and dismisses every picker. When block is set, interactive
// calls park until the channel is closed or the context ends, so
// tests can hold a consent flow open.
type fakeConsent struct {
	mu             sync.Mutex
	allow          bool
	paths          []string
	savePath       string
	chooseID       string
	color          ipc.ColorResult
	area           ipc.Rect
	err            error
	block          chan struct{}
	confirmCalls   int
	lastTitle      string
	lastBody       string
	lastPick       FilePickRequest
	lastDefault    string
	lastCandidates []ipc.AppCandidate
}

func (f *fakeConsent) wait(ctx context.Context) error {
	f.mu.Lock()
	block := f.block
	f.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeConsent) ConfirmAccess(ctx context.Context, appID, title, body string) (bool, error) {
	f.mu.Lock()
	f.confirmCalls++
	f.lastTitle = title
	f.lastBody = body
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	return f.allow, f.err
}

func (f *fakeConsent) PickOpenFiles(ctx context.Context, appID string, pick FilePickRequest) ([]string, error) {
	f.mu.Lock()
	f.lastPick = pick
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	return f.paths, f.err
}

func (f *fakeConsent) PickSaveFile(ctx context.Context, appID string, pick FilePickRequest) (string, error) {
	f.mu.Lock()
	f.lastPick = pick
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	return f.savePath, f.err
}

func (f *fakeConsent) ChooseApplication(ctx context.Context, appID, contentType string, candidates []ipc.AppCandidate, defaultID string) (string, error) {
	f.mu.Lock()
	f.lastDefault = defaultID
	f.lastCandidates = append([]ipc.AppCandidate(nil), candidates...)
	f.mu.Unlock()
	if err := f.wait(ctx); err != nil {
		return "", err
	}
	return f.chooseID, f.err
}

func (f *fakeConsent) PickColor(ctx context.Context, appID string) (ipc.ColorResult, error) {
	if err := f.wait(ctx); err != nil {
		return ipc.ColorResult{}, err
	}
	return f.color, f.err
}

func (f *fakeConsent) SelectArea(ctx context.Context, appID string) (ipc.Rect, error) {
	if err := f.wait(ctx); err != nil {
		return ipc.Rect{}, err
	}
	return f.area, f.err
}

func (f *fakeConsent) confirms() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.confirmCalls
}

// fakeCapturer returns a canned capture and records what was asked.
type fakeCapturer struct {
	mu       sync.Mutex
	outputs  []Output
	png      []byte
	lastArea ipc.Rect
	lastOut  string
	lastWin  string
	err      error
}

func (f *fakeCapturer) Outputs(ctx context.Context) ([]Output, error) {
	return f.outputs, f.err
}

func (f *fakeCapturer) capture(area ipc.Rect) (*Capture, error) {
	if f.err != nil {
		return nil, f.err
	}
	png := f.png
	if png == nil {
		png = []byte("not-really-a-png")
	}
	return &Capture{PNG: png, Width: area.Width, Height: area.Height}, nil
}

func (f *fakeCapturer) CaptureArea(ctx context.Context, area ipc.Rect) (*Capture, error) {
	f.mu.Lock()
	f.lastArea = area
	f.mu.Unlock()
	return f.capture(area)
}

func (f *fakeCapturer) CaptureOutput(ctx context.Context, name string) (*Capture, error) {
	f.mu.Lock()
	f.lastOut = name
	f.mu.Unlock()
	return f.capture(ipc.Rect{Width: 800, Height: 600})
}

func (f *fakeCapturer) CaptureWindow(ctx context.Context, id string) (*Capture, error) {
	f.mu.Lock()
	f.lastWin = id
	f.mu.Unlock()
	return f.capture(ipc.Rect{Width: 400, Height: 300})
}

// fakeLauncher records launches without spawning anything.
type fakeLauncher struct {
	mu       sync.Mutex
	launched [][]string
	pid      int
	err      error
}

func (f *fakeLauncher) Launch(ctx context.Context, command []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.launched = append(f.launched, append([]string(nil), command...))
	if f.pid == 0 {
		f.pid = 4321
	}
	return f.pid, nil
}

func (f *fakeLauncher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launched)
}

// fakeSessionManager records inhibitor lock activity.
type fakeSessionManager struct {
	mu         sync.Mutex
	held       map[string]ipc.InhibitFlags
	released   []string
	inhibitErr error
}

func (f *fakeSessionManager) Inhibit(ctx context.Context, id, appID, reason string, flags ipc.InhibitFlags) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inhibitErr != nil {
		return f.inhibitErr
	}
	if f.held == nil {
		f.held = make(map[string]ipc.InhibitFlags)
	}
	f.held[id] = flags
	return nil
}

func (f *fakeSessionManager) Uninhibit(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, id)
	f.released = append(f.released, id)
	return nil
}

func (f *fakeSessionManager) holding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.held)
}

// fakeBackend is an in-memory settings backend.
type fakeBackend struct {
	mu     sync.Mutex
	values map[string]any
	writes map[string]any
}

func (f *fakeBackend) Read(ctx context.Context, namespace, key string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.values[namespace+"."+key], nil
}

func (f *fakeBackend) Write(ctx context.Context, namespace, key string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writes == nil {
		f.writes = make(map[string]any)
	}
	f.writes[namespace+"."+key] = value
	return nil
}

// fakeIdentity returns a fixed identity.
type fakeIdentity struct {
	info UserInfo
	err  error
}

func (f *fakeIdentity) UserInfo(ctx context.Context) (UserInfo, error) {
	return f.info, f.err
}

// fakeRegistry serves a fixed candidate table.
type fakeRegistry struct {
	byType map[string][]ipc.AppCandidate
	byID   map[string]ipc.AppCandidate
}

func (f *fakeRegistry) ByContentType(contentType string) []ipc.AppCandidate {
	return f.byType[contentType]
}

func (f *fakeRegistry) Describe(appID string) ipc.AppCandidate {
	return f.byID[appID]
}
