// Package config provides configuration for the wbemcli tool.
//
// The config file holds named endpoints so credentials and connection
// details do not have to be repeated on every invocation.
//
// Config file locations (priority order):
//  1. $WBEM_CONFIG
//  2. ./wbem.yaml
//  3. ~/.config/wbem/config.yaml
//  4. /etc/wbem/config.yaml
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration
type Config struct {
	Version int `yaml:"version"`

	// DefaultEndpoint names the endpoint used when none is selected
	DefaultEndpoint string `yaml:"default_endpoint,omitempty"`

	// Endpoints maps a short name to connection details
	Endpoints map[string]Endpoint `yaml:"endpoints,omitempty"`

	Discovery DiscoveryConfig `yaml:"discovery,omitempty"`
	Store     StoreConfig     `yaml:"store,omitempty"`
}

// Endpoint is one WBEM server connection
type Endpoint struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	HTTPS    bool   `yaml:"https,omitempty"`
	Username string `yaml:"username,omitempty"`
	// Password in the clear, or Password64 base64-encoded; Password wins
	// when both are set
	Password   string `yaml:"password,omitempty"`
	Password64 string `yaml:"password64,omitempty"`
	Namespace  string `yaml:"namespace,omitempty"`
	Debug      bool   `yaml:"debug,omitempty"`
}

// DiscoveryConfig configures the discover subcommand
type DiscoveryConfig struct {
	// Targets are IPs, hostnames or CIDR ranges to scan
	Targets []string `yaml:"targets,omitempty"`
	// Ports overrides the default CIM-XML port set
	Ports string `yaml:"ports,omitempty"`
}

// StoreConfig configures the snapshot store
type StoreConfig struct {
	Path string `yaml:"path,omitempty"`
}

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		return DefaultConfig(), "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}

// DefaultConfig returns the defaults for a fresh installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Store:   StoreConfig{Path: "./wbem.db"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Store.Path == "" {
		c.Store.Path = "./wbem.db"
	}
	for name, ep := range c.Endpoints {
		if ep.Port == 0 {
			ep.Port = 80
		}
		if ep.Namespace == "" {
			ep.Namespace = "root/cimv2"
		}
		c.Endpoints[name] = ep
	}
}

// Endpoint resolves a named endpoint, falling back to the default
func (c *Config) Endpoint(name string) (Endpoint, error) {
	if name == "" {
		name = c.DefaultEndpoint
	}
	if name == "" {
		return Endpoint{}, fmt.Errorf("no endpoint selected and no default_endpoint configured")
	}
	ep, ok := c.Endpoints[name]
	if !ok {
		return Endpoint{}, fmt.Errorf("endpoint %q not found in config", name)
	}
	return ep, nil
}

// ResolvePassword returns the effective password, decoding password64 when
// the clear form is absent
func (e Endpoint) ResolvePassword() (string, error) {
	if e.Password != "" {
		return e.Password, nil
	}
	if e.Password64 == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(e.Password64))
	if err != nil {
		return "", fmt.Errorf("decode password64: %w", err)
	}
	return string(raw), nil
}
