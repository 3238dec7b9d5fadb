// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Preferences holds the non-security state the portal remembers
// between sessions: which application handles which content type, and
// the last directory each application browsed to. Kept in a separate
// file from permission records so a corrupted preference file can
// never destroy grants.
type Preferences struct {
	path   string
	logger *slog.Logger

	mu          sync.Mutex
	choices     map[string]string
	lastDirs    map[string]string
	lastWritten []byte
}

type preferencesDocument struct {
	Version  int               `json:"version"`
	Choices  map[string]string `json:"choices,omitempty"`
	LastDirs map[string]string `json:"last_dirs,omitempty"`
}

const preferencesVersion = 1

// NewPreferences creates a preference set persisting to path. The file
// is not read until Load is called.
func NewPreferences(path string, logger *slog.Logger) *Preferences {
	return &Preferences{
		path:     path,
		logger:   logger,
		choices:  make(map[string]string),
		lastDirs: make(map[string]string),
	}
}

// Load reads the preference file. Missing or malformed files start
// empty; preferences are reconstructible from user behavior.
func (p *Preferences) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading preference file: %w", err)
	}

	var doc preferencesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		p.logger.Warn("preference file malformed, starting empty",
			"path", p.path,
			"error", err,
		)
		return nil
	}
	if doc.Choices != nil {
		p.choices = doc.Choices
	}
	if doc.LastDirs != nil {
		p.lastDirs = doc.LastDirs
	}
	p.lastWritten = data
	return nil
}

func (p *Preferences) saveLocked() error {
	doc := preferencesDocument{
		Version:  preferencesVersion,
		Choices:  p.choices,
		LastDirs: p.lastDirs,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling preferences: %w", err)
	}
	data = append(data, '\n')

	if err := writeFileAtomic(p.path, data); err != nil {
		return fmt.Errorf("persisting preferences: %w", err)
	}
	p.lastWritten = data
	return nil
}

// Choice returns the remembered handler application for a content
// type, or "" when none is recorded.
func (p *Preferences) Choice(contentType string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.choices[contentType]
}

// SetChoice records the handler application for a content type,
// persisting before returning.
func (p *Preferences) SetChoice(contentType, appID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, existed := p.choices[contentType]
	p.choices[contentType] = appID
	if err := p.saveLocked(); err != nil {
		if existed {
			p.choices[contentType] = previous
		} else {
			delete(p.choices, contentType)
		}
		return err
	}
	return nil
}

// ForgetChoice drops the remembered handler for a content type. A
// missing entry is not an error.
func (p *Preferences) ForgetChoice(contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, existed := p.choices[contentType]
	if !existed {
		return nil
	}
	delete(p.choices, contentType)
	if err := p.saveLocked(); err != nil {
		p.choices[contentType] = previous
		return err
	}
	return nil
}

// LastDir returns the last directory appID browsed to in a file
// dialog, or "" when none is recorded.
func (p *Preferences) LastDir(appID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastDirs[appID]
}

// SetLastDir records the directory appID last browsed to, persisting
// before returning.
func (p *Preferences) SetLastDir(appID, dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, existed := p.lastDirs[appID]
	p.lastDirs[appID] = dir
	if err := p.saveLocked(); err != nil {
		if existed {
			p.lastDirs[appID] = previous
		} else {
			delete(p.lastDirs, appID)
		}
		return err
	}
	return nil
}
