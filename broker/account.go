// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/portal/lib/ipc"
)

// Account mediates access to the user's identity (id, display name,
// avatar). Identity disclosure is never remembered: every request
// prompts, so the user sees exactly which application asks and why.
type Account struct {
	identity IdentityProvider
	consent  ConsentProvider
	gate     *ConsentGate
	logger   *slog.Logger
}

// NewAccount wires an identity handler.
func NewAccount(identity IdentityProvider, consent ConsentProvider, gate *ConsentGate, logger *slog.Logger) *Account {
	return &Account{identity: identity, consent: consent, gate: gate, logger: logger}
}

// UserInfo prompts for consent and, when granted, returns the user's
// identity. The requesting application's stated reason is shown to
// the user verbatim; without one a generic explanation is used.
func (a *Account) UserInfo(ctx context.Context, appID string, req ipc.Request) (*ipc.UserInfoResult, error) {
	body := req.Reason
	if body == "" {
		body = fmt.Sprintf("%s wants to know who you are", appID)
	}

	allowed, err := Prompt(ctx, a.gate, func(ctx context.Context) (bool, error) {
		return a.consent.ConfirmAccess(ctx, appID, "Share your identity", body)
	})
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, Errorf(KindPermissionDenied, "identity request declined")
	}

	info, err := a.identity.UserInfo(ctx)
	if err != nil {
		return nil, Wrap(KindIoError, err, "reading user identity")
	}
	return &ipc.UserInfoResult{
		Name:           info.Name,
		Username:       info.Username,
		Avatar:         info.Avatar,
		Locale:         info.Locale,
		KeyboardLayout: info.KeyboardLayout,
		SessionID:      info.SessionID,
	}, nil
}
