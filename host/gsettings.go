// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GSettings reads and writes desktop configuration through the
// gsettings CLI. Values cross the boundary as strings in GVariant
// text form; the portal does not model the schema type system.
type GSettings struct{}

// Read returns the value of one key in GVariant text form.
func (g *GSettings) Read(ctx context.Context, namespace, key string) (any, error) {
	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, "gsettings", "get", namespace, key)
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("gsettings get %s %s: %w (stderr: %s)",
			namespace, key, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Write stores a new value for one key.
func (g *GSettings) Write(ctx context.Context, namespace, key string, value any) error {
	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, "gsettings", "set", namespace, key, variantText(value))
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("gsettings set %s %s: %w (stderr: %s)",
			namespace, key, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// variantText renders a decoded CBOR value as GVariant text. Strings
// arrive already in GVariant form when a client round-trips a read
// value; quoting is only added when the string does not look like a
// GVariant literal.
func variantText(value any) string {
	switch v := value.(type) {
	case nil:
		return "''"
	case bool:
		return strconv.FormatBool(v)
	case string:
		if v == "" {
			return "''"
		}
		if strings.HasPrefix(v, "'") || strings.HasPrefix(v, "[") ||
			strings.HasPrefix(v, "(") || strings.HasPrefix(v, "@") {
			return v
		}
		return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
