// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"os/exec"
	"strings"

	"github.com/bureau-foundation/portal/broker"
	"github.com/bureau-foundation/portal/lib/ipc"
)

// Capturer captures the screen with grim and enumerates outputs with
// wlr-randr. Both tools speak for any wlroots compositor.
type Capturer struct {
	// GrimPath and RandrPath override the tool binaries. Empty means
	// the names are resolved from PATH.
	GrimPath  string
	RandrPath string
}

func (c *Capturer) grim() string {
	if c.GrimPath != "" {
		return c.GrimPath
	}
	return "grim"
}

func (c *Capturer) randr() string {
	if c.RandrPath != "" {
		return c.RandrPath
	}
	return "wlr-randr"
}

// randrOutput is the subset of wlr-randr's JSON we consume.
type randrOutput struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Position struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Modes []struct {
		Width   int  `json:"width"`
		Height  int  `json:"height"`
		Current bool `json:"current"`
	} `json:"modes"`
}

// Outputs lists the enabled outputs with their virtual-screen
// geometry.
func (c *Capturer) Outputs(ctx context.Context) ([]broker.Output, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.randr(), "--json")
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("wlr-randr: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	var raw []randrOutput
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("parsing wlr-randr output: %w", err)
	}

	var outputs []broker.Output
	for _, entry := range raw {
		if !entry.Enabled {
			continue
		}
		bounds := ipc.Rect{X: entry.Position.X, Y: entry.Position.Y}
		for _, mode := range entry.Modes {
			if mode.Current {
				bounds.Width = mode.Width
				bounds.Height = mode.Height
				break
			}
		}
		if bounds.Width == 0 || bounds.Height == 0 {
			continue
		}
		outputs = append(outputs, broker.Output{Name: entry.Name, Bounds: bounds})
	}
	return outputs, nil
}

// CaptureArea captures a rectangle in virtual-screen coordinates.
func (c *Capturer) CaptureArea(ctx context.Context, area ipc.Rect) (*broker.Capture, error) {
	geometry := fmt.Sprintf("%d,%d %dx%d", area.X, area.Y, area.Width, area.Height)
	return c.run(ctx, "-g", geometry, "-")
}

// CaptureOutput captures one named output.
func (c *Capturer) CaptureOutput(ctx context.Context, name string) (*broker.Capture, error) {
	return c.run(ctx, "-o", name, "-")
}

// CaptureWindow is not implementable with grim: wlroots compositors
// expose no per-window capture through it. Callers see the failure as
// an i/o error on the window mode.
func (c *Capturer) CaptureWindow(ctx context.Context, id string) (*broker.Capture, error) {
	return nil, fmt.Errorf("window capture is not available on this compositor")
}

func (c *Capturer) run(ctx context.Context, args ...string) (*broker.Capture, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, c.grim(), args...)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("grim %s: %w (stderr: %s)",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}

	data := stdout.Bytes()
	config, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("grim produced invalid png: %w", err)
	}
	return &broker.Capture{PNG: data, Width: config.Width, Height: config.Height}, nil
}
