// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/portal/lib/ipc"
)

// Registry is the application registry loaded from a YAML file:
// which applications exist, their display names, and the content
// types each one handles. The file is curated by the distribution or
// the user, not by applications.
type Registry struct {
	byID   map[string]ipc.AppCandidate
	byType map[string][]ipc.AppCandidate
}

// registryEntry is one application in the registry file.
type registryEntry struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	ContentTypes []string `yaml:"content_types"`
}

// LoadRegistry reads the application registry. A missing path yields
// an empty registry: the chooser then only offers a request's
// explicit candidates.
func LoadRegistry(path string) (*Registry, error) {
	registry := &Registry{
		byID:   make(map[string]ipc.AppCandidate),
		byType: make(map[string][]ipc.AppCandidate),
	}
	if path == "" {
		return registry, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return registry, nil
		}
		return nil, err
	}

	var file struct {
		Applications []registryEntry `yaml:"applications"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for _, entry := range file.Applications {
		if entry.ID == "" {
			return nil, fmt.Errorf("%s: application with empty id", path)
		}
		candidate := ipc.AppCandidate{ID: entry.ID, Name: entry.Name}
		registry.byID[entry.ID] = candidate
		for _, contentType := range entry.ContentTypes {
			registry.byType[contentType] = append(registry.byType[contentType], candidate)
		}
	}
	return registry, nil
}

// ByContentType lists the registered handlers for a content type, in
// file order.
func (r *Registry) ByContentType(contentType string) []ipc.AppCandidate {
	return append([]ipc.AppCandidate(nil), r.byType[contentType]...)
}

// Describe resolves an application id. Unknown ids return the zero
// candidate.
func (r *Registry) Describe(appID string) ipc.AppCandidate {
	return r.byID[appID]
}
