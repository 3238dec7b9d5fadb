// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/portal/lib/clock"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/store"
)

// CaptureMode selects what a screenshot request captures. The switch
// in capture is exhaustive over these values; parseCaptureMode
// rejects anything else at the boundary.
type CaptureMode string

const (
	// ModeFullscreen captures the union bounding box of all outputs.
	ModeFullscreen CaptureMode = "fullscreen"

	// ModeOutput captures one named display output.
	ModeOutput CaptureMode = "output"

	// ModeWindow captures one window.
	ModeWindow CaptureMode = "window"

	// ModeArea captures a rectangle, explicit or interactively
	// selected.
	ModeArea CaptureMode = "area"
)

func parseCaptureMode(raw string) (CaptureMode, error) {
	switch raw {
	case "", string(ModeFullscreen):
		return ModeFullscreen, nil
	case string(ModeOutput):
		return ModeOutput, nil
	case string(ModeWindow):
		return ModeWindow, nil
	case string(ModeArea):
		return ModeArea, nil
	default:
		return "", Errorf(KindUnsupportedMode, "unknown capture mode %q", raw)
	}
}

// Screenshot mediates screen capture and color picking. The
// permission is a single app-wide boolean: the first capture prompts
// once, and every later request from the same application, in any
// mode, proceeds without a prompt for the lifetime of the store.
type Screenshot struct {
	store       *store.Store
	consent     ConsentProvider
	gate        *ConsentGate
	capturer    ScreenCapturer
	sessions    *SessionRegistry
	clock       clock.Clock
	picturesDir string
	logger      *slog.Logger
}

// NewScreenshot wires a screenshot handler. Captures are persisted
// under picturesDir.
func NewScreenshot(st *store.Store, consent ConsentProvider, gate *ConsentGate, capturer ScreenCapturer, sessions *SessionRegistry, clk clock.Clock, picturesDir string, logger *slog.Logger) *Screenshot {
	return &Screenshot{
		store:       st,
		consent:     consent,
		gate:        gate,
		capturer:    capturer,
		sessions:    sessions,
		clock:       clk,
		picturesDir: picturesDir,
		logger:      logger,
	}
}

// Capture handles a screenshot request: check the request's own mode
// flags, authorize the application, capture, and persist the image.
func (s *Screenshot) Capture(ctx context.Context, appID string, req ipc.Request) (*ipc.ScreenshotResult, error) {
	mode, err := parseCaptureMode(req.Mode)
	if err != nil {
		return nil, err
	}

	// The request's own capability flags gate window and monitor
	// capture independently of the stored permission.
	if mode == ModeWindow && !req.AllowWindows {
		return nil, Errorf(KindUnsupportedMode, "window capture requires the allow_windows flag")
	}
	if mode == ModeOutput && !req.AllowMonitors {
		return nil, Errorf(KindUnsupportedMode, "output capture requires the allow_monitors flag")
	}

	if err := s.authorize(ctx, appID); err != nil {
		return nil, err
	}

	capture, err := s.capture(ctx, appID, mode, req)
	if err != nil {
		return nil, err
	}

	uri, err := s.persist(capture)
	if err != nil {
		return nil, err
	}

	return &ipc.ScreenshotResult{
		URI:    uri,
		Width:  capture.Width,
		Height: capture.Height,
	}, nil
}

// PickColor delegates an interactive color pick. No durable
// permission is modeled: the interaction itself is the consent.
func (s *Screenshot) PickColor(ctx context.Context, appID string, req ipc.Request) (*ipc.ColorResult, error) {
	color, err := Prompt(ctx, s.gate, func(ctx context.Context) (ipc.ColorResult, error) {
		return s.consent.PickColor(ctx, appID)
	})
	if err != nil {
		return nil, err
	}
	return &color, nil
}

// authorize runs the boolean screenshot grant flow, serialized per
// application so concurrent first captures share one prompt.
func (s *Screenshot) authorize(ctx context.Context, appID string) error {
	_, err := s.gate.Serialize(appID, "screenshot", func() (any, error) {
		if s.store.HasScreenshot(appID) {
			return nil, nil
		}

		allowed, err := Prompt(ctx, s.gate, func(ctx context.Context) (bool, error) {
			return s.consent.ConfirmAccess(ctx, appID,
				"Screen capture",
				fmt.Sprintf("%s wants to take screenshots", appID),
			)
		})
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, Errorf(KindPermissionDenied, "screen capture declined")
		}

		if err := s.store.GrantScreenshot(appID); err != nil {
			return nil, Wrap(KindIoError, err, "persisting screenshot grant")
		}
		s.sessions.RecordGrant(appID, "screenshot")
		return nil, nil
	})
	return err
}

// capture performs the capture for the resolved mode.
func (s *Screenshot) capture(ctx context.Context, appID string, mode CaptureMode, req ipc.Request) (*Capture, error) {
	switch mode {
	case ModeFullscreen:
		outputs, err := s.capturer.Outputs(ctx)
		if err != nil {
			return nil, Wrap(KindIoError, err, "listing outputs")
		}
		if len(outputs) == 0 {
			return nil, Errorf(KindIoError, "no display outputs")
		}
		capture, err := s.capturer.CaptureArea(ctx, boundingBox(outputs))
		if err != nil {
			return nil, Wrap(KindIoError, err, "capturing virtual screen")
		}
		return capture, nil

	case ModeOutput:
		if req.Output == "" {
			return nil, Errorf(KindUnsupportedMode, "output capture requires an output name")
		}
		capture, err := s.capturer.CaptureOutput(ctx, req.Output)
		if err != nil {
			return nil, Wrap(KindIoError, err, "capturing output %s", req.Output)
		}
		return capture, nil

	case ModeWindow:
		if req.Window == "" {
			return nil, Errorf(KindUnsupportedMode, "window capture requires a window id")
		}
		capture, err := s.capturer.CaptureWindow(ctx, req.Window)
		if err != nil {
			return nil, Wrap(KindIoError, err, "capturing window %s", req.Window)
		}
		return capture, nil

	case ModeArea:
		area, err := s.resolveArea(ctx, appID, req)
		if err != nil {
			return nil, err
		}
		capture, err := s.capturer.CaptureArea(ctx, area)
		if err != nil {
			return nil, Wrap(KindIoError, err, "capturing area")
		}
		return capture, nil

	default:
		return nil, Errorf(KindUnsupportedMode, "unknown capture mode %q", mode)
	}
}

// resolveArea returns the explicit rectangle, or delegates selection
// to the user for interactive requests.
func (s *Screenshot) resolveArea(ctx context.Context, appID string, req ipc.Request) (ipc.Rect, error) {
	if req.Area != nil {
		if req.Area.Width <= 0 || req.Area.Height <= 0 {
			return ipc.Rect{}, Errorf(KindUnsupportedMode, "area capture requires positive dimensions")
		}
		return *req.Area, nil
	}
	if !req.Interactive {
		return ipc.Rect{}, Errorf(KindUnsupportedMode, "area capture requires a rectangle or interactive selection")
	}
	return Prompt(ctx, s.gate, func(ctx context.Context) (ipc.Rect, error) {
		return s.consent.SelectArea(ctx, appID)
	})
}

// persist writes the capture as a PNG under the pictures directory
// with a collision-resistant generated name, and returns its file://
// URI.
func (s *Screenshot) persist(capture *Capture) (string, error) {
	if err := os.MkdirAll(s.picturesDir, 0o755); err != nil {
		return "", Wrap(KindIoError, err, "creating %s", s.picturesDir)
	}

	digest := blake3.Sum256(capture.PNG)
	name := fmt.Sprintf("screenshot-%s-%s.png",
		s.clock.Now().Format("20060102-150405"),
		hex.EncodeToString(digest[:4]),
	)
	path := filepath.Join(s.picturesDir, name)

	if err := os.WriteFile(path, capture.PNG, 0o644); err != nil {
		return "", Wrap(KindIoError, err, "writing %s", path)
	}
	return fileURI(path), nil
}

// boundingBox computes the union of all output rectangles.
func boundingBox(outputs []Output) ipc.Rect {
	minX, minY := outputs[0].Bounds.X, outputs[0].Bounds.Y
	maxX := outputs[0].Bounds.X + outputs[0].Bounds.Width
	maxY := outputs[0].Bounds.Y + outputs[0].Bounds.Height
	for _, output := range outputs[1:] {
		b := output.Bounds
		minX = min(minX, b.X)
		minY = min(minY, b.Y)
		maxX = max(maxX, b.X+b.Width)
		maxY = max(maxY, b.Y+b.Height)
	}
	return ipc.Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
