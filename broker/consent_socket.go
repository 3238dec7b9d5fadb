// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/lib/service"
)

// SocketConsent is a ConsentProvider backed by a consent agent
// serving the consent socket (portal-consent, or a desktop shell's
// own agent). Each prompt is one request-response call; the agent
// holds the connection open while the user decides, and the daemon's
// context deadline bounds the wait.
type SocketConsent struct {
	client *service.Client
}

// NewSocketConsent creates a provider that dials the consent agent at
// socketPath.
func NewSocketConsent(socketPath string) *SocketConsent {
	return &SocketConsent{client: service.NewClient(socketPath)}
}

func (c *SocketConsent) call(ctx context.Context, req ipc.ConsentRequest, result any) error {
	fields := map[string]any{
		"app_id": req.AppID,
	}
	if req.Title != "" {
		fields["title"] = req.Title
	}
	if req.Body != "" {
		fields["body"] = req.Body
	}
	if req.StartDir != "" {
		fields["start_dir"] = req.StartDir
	}
	if req.SuggestedName != "" {
		fields["suggested_name"] = req.SuggestedName
	}
	if req.Multiple {
		fields["multiple"] = true
	}
	if req.Directory {
		fields["directory"] = true
	}
	if len(req.Filters) > 0 {
		fields["filters"] = req.Filters
	}
	if req.ContentType != "" {
		fields["content_type"] = req.ContentType
	}
	if len(req.Candidates) > 0 {
		fields["candidates"] = req.Candidates
	}
	if req.Default != "" {
		fields["default"] = req.Default
	}
	if err := c.client.Call(ctx, req.Action, fields, result); err != nil {
		return fmt.Errorf("consent agent: %w", err)
	}
	return nil
}

func (c *SocketConsent) ConfirmAccess(ctx context.Context, appID, title, body string) (bool, error) {
	var response ipc.ConfirmResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action: "confirm",
		AppID:  appID,
		Title:  title,
		Body:   body,
	}, &response)
	if err != nil {
		return false, err
	}
	return response.Allowed, nil
}

func (c *SocketConsent) PickOpenFiles(ctx context.Context, appID string, req FilePickRequest) ([]string, error) {
	var response ipc.PickFilesResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action:    "pick-open-files",
		AppID:     appID,
		Title:     req.Title,
		StartDir:  req.StartDir,
		Multiple:  req.Multiple,
		Directory: req.Directory,
		Filters:   req.Filters,
	}, &response)
	if err != nil {
		return nil, err
	}
	return response.Paths, nil
}

func (c *SocketConsent) PickSaveFile(ctx context.Context, appID string, req FilePickRequest) (string, error) {
	var response ipc.PickSaveResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action:        "pick-save-file",
		AppID:         appID,
		Title:         req.Title,
		StartDir:      req.StartDir,
		SuggestedName: req.SuggestedName,
	}, &response)
	if err != nil {
		return "", err
	}
	return response.Path, nil
}

func (c *SocketConsent) ChooseApplication(ctx context.Context, appID, contentType string, candidates []ipc.AppCandidate, defaultID string) (string, error) {
	var response ipc.ChooseResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action:      "choose-application",
		AppID:       appID,
		ContentType: contentType,
		Candidates:  candidates,
		Default:     defaultID,
	}, &response)
	if err != nil {
		return "", err
	}
	return response.AppID, nil
}

func (c *SocketConsent) PickColor(ctx context.Context, appID string) (ipc.ColorResult, error) {
	var response ipc.PickColorResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action: "pick-color",
		AppID:  appID,
	}, &response)
	if err != nil {
		return ipc.ColorResult{}, err
	}
	return ipc.ColorResult{Red: response.Red, Green: response.Green, Blue: response.Blue}, nil
}

func (c *SocketConsent) SelectArea(ctx context.Context, appID string) (ipc.Rect, error) {
	var response ipc.SelectAreaResponse
	err := c.call(ctx, ipc.ConsentRequest{
		Action: "select-area",
		AppID:  appID,
	}, &response)
	if err != nil {
		return ipc.Rect{}, err
	}
	return response.Area, nil
}
