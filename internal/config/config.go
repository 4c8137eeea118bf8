// Package config handles HAKit daemon and CLI configuration.
//
// The daemon's own settings (trace depth, HKCP port, tile roots) live
// at a single path, next to a set of named remote contexts with a
// current-context selector, the same pattern the teacher's CLI config
// package uses for daemon sockets. The hakit CLI does not read this
// file; it takes its target from its --host and --port flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Context describes how to reach one HKCP node's TCP command channel.
type Context struct {
	Host string `yaml:"host"` // host:port, stored as given
}

// Config holds the daemon's own settings plus the CLI's named remote
// contexts.
type Config struct {
	CurrentContext string             `yaml:"current-context,omitempty"`
	Contexts       map[string]Context `yaml:"contexts,omitempty"`

	// TraceDepth is the per-endpoint trace ring depth; 0 uses endpoint.DefaultTraceDepth.
	TraceDepth int `yaml:"trace-depth,omitempty"`
	// Port is the HKCP TCP/UDP port; 0 uses hkcp.DefaultPort.
	Port int `yaml:"port,omitempty"`
	// TileRoots lists directories scanned for tile definitions at startup.
	TileRoots []string `yaml:"tile-roots,omitempty"`
	// HistoryPrefix is the filename prefix history buckets are written under.
	HistoryPrefix string `yaml:"history-prefix,omitempty"`
	// HistoryDir is the directory history bucket files are written to.
	// Empty disables history logging.
	HistoryDir string `yaml:"history-dir,omitempty"`
}

// Path returns the config file location, respecting XDG_CONFIG_HOME
// and falling back to ~/.config/hakit/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "hakit", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "hakit", "config.yaml")
}

// Load reads the config file, returning built-in defaults if it does
// not exist.
func Load() (*Config, error) {
	data, err := os.ReadFile(Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{Contexts: make(map[string]Context)}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]Context)
	}
	return &cfg, nil
}

// Save writes the config to disk, creating directories as needed.
func (c *Config) Save() error {
	p := Path()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Current returns the current context name and value. The bool is
// false when no current context is set.
func (c *Config) Current() (string, Context, bool) {
	if c.CurrentContext == "" {
		return "", Context{}, false
	}
	ctx, ok := c.Contexts[c.CurrentContext]
	if !ok {
		return "", Context{}, false
	}
	return c.CurrentContext, ctx, true
}

// Use sets the current context, failing if it is not defined.
func (c *Config) Use(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("context %q not found", name)
	}
	c.CurrentContext = name
	return nil
}

// Set adds or updates a named context.
func (c *Config) Set(name string, ctx Context) {
	if c.Contexts == nil {
		c.Contexts = make(map[string]Context)
	}
	c.Contexts[name] = ctx
}
