// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/portal/lib/codec"
	"github.com/bureau-foundation/portal/lib/config"
	"github.com/bureau-foundation/portal/lib/ipc"
	"github.com/bureau-foundation/portal/lib/service"
)

// CallerResolver maps a socket peer to an application id. The portal
// trusts the kernel-verified uid, never anything the client claims
// about itself.
type CallerResolver func(peer service.Peer) (string, error)

// ResolverFromConfig builds a CallerResolver from the configured
// uid-to-application mappings. With no mappings configured, every
// caller resolves to "host"; that mode exists for development on an
// unsandboxed desktop.
func ResolverFromConfig(mappings []config.CallerMapping) CallerResolver {
	if len(mappings) == 0 {
		return func(service.Peer) (string, error) { return "host", nil }
	}
	byUID := make(map[uint32]string, len(mappings))
	for _, mapping := range mappings {
		byUID[mapping.UID] = mapping.AppID
	}
	return func(peer service.Peer) (string, error) {
		appID, ok := byUID[peer.UID]
		if !ok {
			return "", Errorf(KindPermissionDenied, "uid %d is not a registered application", peer.UID)
		}
		return appID, nil
	}
}

// Server is the portal's client-facing surface: it binds the
// capability handlers to socket actions. Interactive capabilities are
// asynchronous (submit returns a handle, the outcome is awaited);
// inhibit and settings access are synchronous.
type Server struct {
	dispatcher *Dispatcher
	files      *FileChooser
	screenshot *Screenshot
	account    *Account
	chooser    *AppChooser
	inhibitor  *Inhibitor
	background *Background
	settings   *Settings
	resolve    CallerResolver
	logger     *slog.Logger
}

// NewServer wires the capability handlers into a client surface.
func NewServer(dispatcher *Dispatcher, files *FileChooser, screenshot *Screenshot, account *Account, chooser *AppChooser, inhibitor *Inhibitor, background *Background, settings *Settings, resolve CallerResolver, logger *slog.Logger) *Server {
	return &Server{
		dispatcher: dispatcher,
		files:      files,
		screenshot: screenshot,
		account:    account,
		chooser:    chooser,
		inhibitor:  inhibitor,
		background: background,
		settings:   settings,
		resolve:    resolve,
		logger:     logger,
	}
}

// Register installs the client actions on a socket server.
func (s *Server) Register(server *service.SocketServer) {
	server.Handle("open-file", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.files.Open(ctx, appID, req)
	}))
	server.Handle("save-file", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.files.Save(ctx, appID, req)
	}))
	server.Handle("screenshot", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.screenshot.Capture(ctx, appID, req)
	}))
	server.Handle("pick-color", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.screenshot.PickColor(ctx, appID, req)
	}))
	server.Handle("get-user-info", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.account.UserInfo(ctx, appID, req)
	}))
	server.Handle("choose-application", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.chooser.Choose(ctx, appID, req)
	}))
	server.Handle("request-background", s.submit(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.background.Request(ctx, appID, req)
	}))

	server.Handle("await", s.await)
	server.Handle("cancel", s.cancel)

	server.Handle("inhibit", s.sync(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.inhibitor.Inhibit(ctx, appID, req)
	}))
	server.Handle("uninhibit", s.sync(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return nil, s.inhibitor.Uninhibit(ctx, appID, req.InhibitionID)
	}))
	server.Handle("read-setting", s.sync(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return s.settings.Read(ctx, appID, req)
	}))
	server.Handle("write-setting", s.sync(func(ctx context.Context, appID string, req ipc.Request) (any, error) {
		return nil, s.settings.Write(ctx, appID, req)
	}))
}

// submit wraps an interactive capability as an asynchronous action:
// the run starts in the background and the client gets a handle back
// immediately.
func (s *Server) submit(capability func(ctx context.Context, appID string, req ipc.Request) (any, error)) service.ActionFunc {
	return func(_ context.Context, peer service.Peer, raw []byte) (any, error) {
		appID, req, err := s.decode(peer, raw)
		if err != nil {
			return nil, err
		}
		handle := s.dispatcher.Submit(appID, req.ParentWindow, func(ctx context.Context) (any, error) {
			return capability(ctx, appID, req)
		})
		return ipc.SubmitResponse{Handle: handle.ID}, nil
	}
}

// sync wraps a non-interactive capability as a plain request-response
// action.
func (s *Server) sync(capability func(ctx context.Context, appID string, req ipc.Request) (any, error)) service.ActionFunc {
	return func(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
		appID, req, err := s.decode(peer, raw)
		if err != nil {
			return nil, err
		}
		return capability(ctx, appID, req)
	}
}

// await blocks until the handle's request reaches a terminal state,
// then reports the outcome. The caller's connection going away leaves
// the request running; a later await still observes the result.
func (s *Server) await(ctx context.Context, peer service.Peer, raw []byte) (any, error) {
	_, req, err := s.decode(peer, raw)
	if err != nil {
		return nil, err
	}

	state, result, runErr := s.dispatcher.Await(ctx, req.Handle)
	if state == "" {
		// The wait itself failed: unknown handle, or interrupted.
		return nil, runErr
	}
	response := ipc.AwaitResponse{State: string(state)}
	if runErr != nil {
		response.Code = string(KindOf(runErr))
		response.Error = runErr.Error()
		return response, nil
	}
	if result != nil {
		encoded, err := codec.Marshal(result)
		if err != nil {
			return nil, Wrap(KindIoError, err, "encoding result")
		}
		response.Result = encoded
	}
	return response, nil
}

func (s *Server) cancel(_ context.Context, peer service.Peer, raw []byte) (any, error) {
	_, req, err := s.decode(peer, raw)
	if err != nil {
		return nil, err
	}
	return nil, s.dispatcher.Cancel(req.Handle)
}

// decode resolves the caller and unmarshals the request body.
func (s *Server) decode(peer service.Peer, raw []byte) (string, ipc.Request, error) {
	appID, err := s.resolve(peer)
	if err != nil {
		return "", ipc.Request{}, err
	}
	var req ipc.Request
	if err := codec.Unmarshal(raw, &req); err != nil {
		return "", ipc.Request{}, Wrap(KindIoError, err, "decoding request")
	}
	return appID, req, nil
}
