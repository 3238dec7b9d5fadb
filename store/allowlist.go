// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// SettingsAccess holds the global settings allow-lists. The lists are
// keyed by fully-qualified setting keys ("namespace.key") and support
// a trailing ".*" wildcard covering every key in a namespace.
//
// These lists are global: they do not consider which application is
// asking. Per-application levels in the permission record take
// precedence over them.
type SettingsAccess struct {
	readOnly  []string
	readWrite []string
}

// settingsAccessFile is the on-disk shape of the access file. The file
// is JSONC — comments are allowed, since this is a sysadmin-edited
// policy file.
type settingsAccessFile struct {
	ReadOnly  []string `json:"read_only"`
	ReadWrite []string `json:"read_write"`
}

// LoadSettingsAccess reads the allow-list file at path. A missing file
// yields empty lists (nothing readable, nothing writable) rather than
// an error, so a fresh installation without a policy file denies
// everything.
func LoadSettingsAccess(path string) (*SettingsAccess, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SettingsAccess{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings access file: %w", err)
	}

	var parsed settingsAccessFile
	if err := json.Unmarshal(jsonc.ToJSON(data), &parsed); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	access := &SettingsAccess{
		readOnly:  parsed.ReadOnly,
		readWrite: parsed.ReadWrite,
	}
	for _, pattern := range append(access.readOnly, access.readWrite...) {
		if err := validateKeyPattern(pattern); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return access, nil
}

// NewSettingsAccess builds access lists directly. Used by tests and by
// callers that manage policy programmatically.
func NewSettingsAccess(readOnly, readWrite []string) *SettingsAccess {
	return &SettingsAccess{readOnly: readOnly, readWrite: readWrite}
}

// Level returns the most permissive level the lists assign to key.
// A key matched by both lists is read-write.
func (a *SettingsAccess) Level(key string) SettingsLevel {
	if matchesAny(a.readWrite, key) {
		return SettingsReadWrite
	}
	if matchesAny(a.readOnly, key) {
		return SettingsReadOnly
	}
	return SettingsNone
}

func matchesAny(patterns []string, key string) bool {
	for _, pattern := range patterns {
		if matchKey(pattern, key) {
			return true
		}
	}
	return false
}

// matchKey matches a fully-qualified setting key against a pattern.
// Patterns are either exact keys or a namespace followed by ".*",
// which covers every key under that namespace (at any depth).
func matchKey(pattern, key string) bool {
	if namespace, ok := strings.CutSuffix(pattern, ".*"); ok {
		return strings.HasPrefix(key, namespace+".")
	}
	return pattern == key
}

// validateKeyPattern rejects patterns that cannot match anything.
func validateKeyPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty setting key pattern")
	}
	if pattern == ".*" || pattern == "*" {
		return fmt.Errorf("pattern %q matches every key; list keys by namespace instead", pattern)
	}
	if strings.Contains(strings.TrimSuffix(pattern, ".*"), "*") {
		return fmt.Errorf("pattern %q: wildcard only allowed as trailing .*", pattern)
	}
	return nil
}
