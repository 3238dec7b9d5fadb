// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"

	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/lib/service"
)

// Agent answers consent requests with terminal forms. Prompts are
// serialized: the terminal can show one dialog at a time, so
// concurrent requests queue on the mutex.
type Agent struct {
	AutoApprove bool
	Logger      *slog.Logger

	mu sync.Mutex
}

// Register installs the consent actions on the socket server.
func (a *Agent) Register(server *service.SocketServer) {
	server.Handle("confirm", a.handler(a.confirm))
	server.Handle("pick-open-files", a.handler(a.pickOpenFiles))
	server.Handle("pick-save-file", a.handler(a.pickSaveFile))
	server.Handle("choose-application", a.handler(a.chooseApplication))
	server.Handle("pick-color", a.handler(a.pickColor))
	server.Handle("select-area", a.handler(a.selectArea))
}

func (a *Agent) handler(decide func(ctx context.Context, req *ipc.ConsentRequest) (any, error)) service.ActionFunc {
	return func(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
		var req ipc.ConsentRequest
		if err := codec.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decoding consent request: %w", err)
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		a.Logger.Debug("consent request", "action", req.Action, "app_id", req.AppID)
		return decide(ctx, &req)
	}
}

func (a *Agent) confirm(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		return ipc.ConfirmResponse{Allowed: true}, nil
	}
	var allowed bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(req.Title).
			Description(req.Body).
			Affirmative("Allow").
			Negative("Deny").
			Value(&allowed),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ipc.ConfirmResponse{Allowed: false}, nil
		}
		return nil, err
	}
	return ipc.ConfirmResponse{Allowed: allowed}, nil
}

func (a *Agent) pickOpenFiles(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		return ipc.PickFilesResponse{}, nil
	}
	var paths []string
	for {
		path, err := a.pickOne(ctx, req, len(paths))
		if err != nil {
			return nil, err
		}
		if path == "" {
			break
		}
		paths = append(paths, path)
		if !req.Multiple {
			break
		}
		more := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Select another file?").
				Affirmative("Yes").
				Negative("Done").
				Value(&more),
		))
		if err := form.RunWithContext(ctx); err != nil || !more {
			break
		}
	}
	return ipc.PickFilesResponse{Paths: paths}, nil
}

// pickOne shows a single file picker. Empty return means dismissed.
func (a *Agent) pickOne(ctx context.Context, req *ipc.ConsentRequest, picked int) (string, error) {
	title := fmt.Sprintf("%s — select a file", req.AppID)
	if req.Directory {
		title = fmt.Sprintf("%s — select a folder", req.AppID)
	}
	if picked > 0 {
		title = fmt.Sprintf("%s (%d selected)", title, picked)
	}
	var path string
	picker := huh.NewFilePicker().
		Title(title).
		CurrentDirectory(req.StartDir).
		DirAllowed(req.Directory).
		FileAllowed(!req.Directory).
		Value(&path)
	if types := allowedExtensions(req.Filters); len(types) > 0 {
		picker = picker.AllowedTypes(types)
	}
	if err := huh.NewForm(huh.NewGroup(picker)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// allowedExtensions extracts extensions from glob-style filter
// patterns. Patterns that are not a plain "*.ext" (MIME types,
// literal names) cannot be expressed as a picker restriction and are
// skipped; if any filter has such a pattern the picker stays
// unrestricted so those files remain selectable.
func allowedExtensions(filters []ipc.FileFilter) []string {
	var extensions []string
	for _, filter := range filters {
		for _, pattern := range filter.Patterns {
			rest, ok := strings.CutPrefix(pattern, "*.")
			if !ok || strings.ContainsAny(rest, "*?[") {
				return nil
			}
			extensions = append(extensions, "."+rest)
		}
	}
	return extensions
}

func (a *Agent) pickSaveFile(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		return ipc.PickSaveResponse{Path: filepath.Join(req.StartDir, req.SuggestedName)}, nil
	}
	path := filepath.Join(req.StartDir, req.SuggestedName)
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("%s — save file as", req.AppID)).
			Description("Full path for the saved file. Leave empty to cancel.").
			Value(&path),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ipc.PickSaveResponse{}, nil
		}
		return nil, err
	}
	return ipc.PickSaveResponse{Path: strings.TrimSpace(path)}, nil
}

func (a *Agent) chooseApplication(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		if req.Default != "" {
			return ipc.ChooseResponse{AppID: req.Default}, nil
		}
		if len(req.Candidates) > 0 {
			return ipc.ChooseResponse{AppID: req.Candidates[0].ID}, nil
		}
		return ipc.ChooseResponse{}, nil
	}
	options := make([]huh.Option[string], 0, len(req.Candidates))
	for _, candidate := range req.Candidates {
		label := candidate.Name
		if label == "" {
			label = candidate.ID
		}
		options = append(options, huh.NewOption(label, candidate.ID))
	}
	title := fmt.Sprintf("%s — open with", req.AppID)
	if req.ContentType != "" {
		title = fmt.Sprintf("%s (%s)", title, req.ContentType)
	}
	choice := req.Default
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(title).
			Options(options...).
			Value(&choice),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ipc.ChooseResponse{}, nil
		}
		return nil, err
	}
	return ipc.ChooseResponse{AppID: choice}, nil
}

func (a *Agent) pickColor(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		return ipc.PickColorResponse{}, nil
	}
	var text string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("%s — pick a color", req.AppID)).
			Description("Hex (#rrggbb) or three 0-1 components (r,g,b).").
			Validate(func(value string) error {
				_, err := parseColor(value)
				return err
			}).
			Value(&text),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ipc.PickColorResponse{}, nil
		}
		return nil, err
	}
	color, err := parseColor(text)
	if err != nil {
		return nil, err
	}
	return color, nil
}

func parseColor(text string) (ipc.PickColorResponse, error) {
	text = strings.TrimSpace(text)
	if hex, ok := strings.CutPrefix(text, "#"); ok {
		if len(hex) != 6 {
			return ipc.PickColorResponse{}, fmt.Errorf("hex color must be 6 digits")
		}
		value, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return ipc.PickColorResponse{}, fmt.Errorf("invalid hex color %q", text)
		}
		return ipc.PickColorResponse{
			Red:   float64(value>>16&0xff) / 255,
			Green: float64(value>>8&0xff) / 255,
			Blue:  float64(value&0xff) / 255,
		}, nil
	}
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return ipc.PickColorResponse{}, fmt.Errorf("expected #rrggbb or r,g,b")
	}
	var components [3]float64
	for i, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || value < 0 || value > 1 {
			return ipc.PickColorResponse{}, fmt.Errorf("component %d must be a number in [0, 1]", i+1)
		}
		components[i] = value
	}
	return ipc.PickColorResponse{Red: components[0], Green: components[1], Blue: components[2]}, nil
}

func (a *Agent) selectArea(ctx context.Context, req *ipc.ConsentRequest) (any, error) {
	if a.AutoApprove {
		return ipc.SelectAreaResponse{}, nil
	}
	var text string
	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(fmt.Sprintf("%s — capture area", req.AppID)).
			Description(`Geometry as "x,y WxH", e.g. "100,200 800x600".`).
			Validate(func(value string) error {
				_, err := parseGeometry(value)
				return err
			}).
			Value(&text),
	))
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return ipc.SelectAreaResponse{}, nil
		}
		return nil, err
	}
	area, err := parseGeometry(text)
	if err != nil {
		return nil, err
	}
	return ipc.SelectAreaResponse{Area: area}, nil
}

// parseGeometry parses "x,y WxH" (the grim geometry syntax).
func parseGeometry(text string) (ipc.Rect, error) {
	position, size, ok := strings.Cut(strings.TrimSpace(text), " ")
	if !ok {
		return ipc.Rect{}, fmt.Errorf(`expected "x,y WxH"`)
	}
	xText, yText, ok := strings.Cut(position, ",")
	if !ok {
		return ipc.Rect{}, fmt.Errorf("position must be x,y")
	}
	widthText, heightText, ok := strings.Cut(size, "x")
	if !ok {
		return ipc.Rect{}, fmt.Errorf("size must be WxH")
	}
	x, err := strconv.Atoi(strings.TrimSpace(xText))
	if err != nil {
		return ipc.Rect{}, fmt.Errorf("invalid x %q", xText)
	}
	y, err := strconv.Atoi(strings.TrimSpace(yText))
	if err != nil {
		return ipc.Rect{}, fmt.Errorf("invalid y %q", yText)
	}
	width, err := strconv.Atoi(strings.TrimSpace(widthText))
	if err != nil || width <= 0 {
		return ipc.Rect{}, fmt.Errorf("width must be a positive integer")
	}
	height, err := strconv.Atoi(strings.TrimSpace(heightText))
	if err != nil || height <= 0 {
		return ipc.Rect{}, fmt.Errorf("height must be a positive integer")
	}
	return ipc.Rect{X: x, Y: y, Width: width, Height: height}, nil
}
