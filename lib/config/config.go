// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for the portal daemon.
type Config struct {
	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Sockets configures the Unix socket endpoints.
	Sockets SocketsConfig `yaml:"sockets"`

	// Consent configures the interactive consent flow.
	Consent ConsentConfig `yaml:"consent"`

	// Sessions configures client session lifetime.
	Sessions SessionsConfig `yaml:"sessions"`

	// Settings configures the settings capability.
	Settings SettingsConfig `yaml:"settings"`

	// Applications is the path to the application registry file
	// (content type to application mappings, YAML).
	Applications string `yaml:"applications"`

	// Callers maps sandbox uids to application ids for the default
	// peer-credential caller resolver. An empty list means every
	// caller resolves to the fallback id "host" (useful only for
	// development).
	Callers []CallerMapping `yaml:"callers"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// State is the per-user state directory holding the permission
	// record file and the preference file.
	// Default: ${XDG_STATE_HOME:-${HOME}/.local/state}/portal
	State string `yaml:"state"`

	// Pictures is where screenshots are persisted.
	// Default: ${HOME}/Pictures
	Pictures string `yaml:"pictures"`

	// Home overrides the user's home directory for the well-known
	// directory policy. Empty means the real home directory.
	Home string `yaml:"home"`
}

// SocketsConfig configures the Unix socket endpoints.
type SocketsConfig struct {
	// Client is the socket sandboxed applications connect to.
	// Default: ${XDG_RUNTIME_DIR}/portal/client.sock
	Client string `yaml:"client"`

	// Admin is the socket for portalctl and shell notifications
	// (window destroyed, session ended). Not reachable from sandboxes.
	// Default: ${XDG_RUNTIME_DIR}/portal/admin.sock
	Admin string `yaml:"admin"`

	// Consent is the socket of the consent agent the daemon dials to
	// obtain interactive allow/deny decisions and picker results.
	// Default: ${XDG_RUNTIME_DIR}/portal/consent.sock
	Consent string `yaml:"consent"`
}

// ConsentConfig configures the interactive consent flow.
type ConsentConfig struct {
	// Timeout bounds how long a request may stay suspended on an
	// unanswered consent prompt. An abandoned dialog resolves the
	// request as denied when the timeout elapses. Default: 2m.
	Timeout Duration `yaml:"timeout"`
}

// SessionsConfig configures client session lifetime.
type SessionsConfig struct {
	// IdleTimeout is how long a session with no requests survives
	// before the expiry sweep removes it. Default: 30m.
	IdleTimeout Duration `yaml:"idle_timeout"`

	// SweepInterval is how often expired sessions are collected.
	// Default: 1m.
	SweepInterval Duration `yaml:"sweep_interval"`
}

// SettingsConfig configures the settings capability.
type SettingsConfig struct {
	// AccessFile is the path to the JSONC allow-list file declaring
	// which setting keys are readable and which are writable.
	// Default: /etc/portal/settings-access.jsonc
	AccessFile string `yaml:"access_file"`
}

// CallerMapping associates a uid with an application id.
type CallerMapping struct {
	UID   uint32 `yaml:"uid"`
	AppID string `yaml:"app_id"`
}

// Duration wraps time.Duration with YAML unmarshaling from strings
// like "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the default configuration. These defaults are used
// as a base before loading the config file, so every field has a
// sensible zero-value; the config file remains the source of truth.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome == "" {
		stateHome = filepath.Join(homeDir, ".local", "state")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(os.TempDir(), "portal")
	}

	return &Config{
		Paths: PathsConfig{
			State:    filepath.Join(stateHome, "portal"),
			Pictures: filepath.Join(homeDir, "Pictures"),
		},
		Sockets: SocketsConfig{
			Client:  filepath.Join(runtimeDir, "portal", "client.sock"),
			Admin:   filepath.Join(runtimeDir, "portal", "admin.sock"),
			Consent: filepath.Join(runtimeDir, "portal", "consent.sock"),
		},
		Consent: ConsentConfig{
			Timeout: Duration(2 * time.Minute),
		},
		Sessions: SessionsConfig{
			IdleTimeout:   Duration(30 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Settings: SettingsConfig{
			AccessFile: "/etc/portal/settings-access.jsonc",
		},
	}
}

// Load loads configuration from the PORTAL_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults — if PORTAL_CONFIG is not set,
// this fails. This ensures deterministic, auditable configuration with
// no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("PORTAL_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("PORTAL_CONFIG environment variable not set; " +
			"set it to the path of your portal.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values. The only expansion performed is
// ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()

	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":            os.Getenv("HOME"),
		"XDG_RUNTIME_DIR": os.Getenv("XDG_RUNTIME_DIR"),
		"XDG_STATE_HOME":  os.Getenv("XDG_STATE_HOME"),
	}

	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Paths.Pictures = expandVars(c.Paths.Pictures, vars)
	c.Paths.Home = expandVars(c.Paths.Home, vars)
	c.Sockets.Client = expandVars(c.Sockets.Client, vars)
	c.Sockets.Admin = expandVars(c.Sockets.Admin, vars)
	c.Sockets.Consent = expandVars(c.Sockets.Consent, vars)
	c.Settings.AccessFile = expandVars(c.Settings.AccessFile, vars)
	c.Applications = expandVars(c.Applications, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Paths.State == "" {
		errs = append(errs, fmt.Errorf("paths.state is required"))
	}
	if c.Paths.Pictures == "" {
		errs = append(errs, fmt.Errorf("paths.pictures is required"))
	}
	if c.Sockets.Client == "" {
		errs = append(errs, fmt.Errorf("sockets.client is required"))
	}
	if c.Sockets.Admin == "" {
		errs = append(errs, fmt.Errorf("sockets.admin is required"))
	}
	if c.Consent.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("consent.timeout must be positive"))
	}
	if c.Sessions.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sessions.idle_timeout must be positive"))
	}
	if c.Sessions.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("sessions.sweep_interval must be positive"))
	}

	seen := make(map[uint32]bool)
	for _, mapping := range c.Callers {
		if mapping.AppID == "" {
			errs = append(errs, fmt.Errorf("callers: uid %d has empty app_id", mapping.UID))
		}
		if seen[mapping.UID] {
			errs = append(errs, fmt.Errorf("callers: duplicate uid %d", mapping.UID))
		}
		seen[mapping.UID] = true
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsurePaths creates the state directory and the socket directories
// if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.State,
		filepath.Dir(c.Sockets.Client),
		filepath.Dir(c.Sockets.Admin),
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
