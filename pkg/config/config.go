// Package config loads the engine configuration: which controls are active,
// bulk-ingestion behavior and scan limits.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine configuration.
type Config struct {
	Controls ControlsConfig `yaml:"controls"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Scan     ScanConfig     `yaml:"scan"`
}

// ControlsConfig selects which named checks scanners evaluate.
// A disabled check is skipped entirely, which is different from a check
// that ran and passed.
type ControlsConfig struct {
	Disabled []string `yaml:"disabled"`
}

// IngestConfig configures bulk (autodetecting) ingestion.
type IngestConfig struct {
	// AllowMultiple lets several ingestors consume the same path during a
	// bulk run. Off by default: first match wins and the subtree is pruned.
	AllowMultiple bool `yaml:"allow_multiple"`
}

// ScanConfig bounds scanner resource usage.
type ScanConfig struct {
	// MaxSMBFiles caps the number of smb_file rows a streaming scanner
	// processes. Zero means no cap.
	MaxSMBFiles int `yaml:"max_smb_files"`
}

// Default returns the default configuration: all controls enabled,
// single-match bulk ingestion, no scan caps.
func Default() *Config {
	return &Config{}
}

// Load reads a YAML configuration file. A missing file yields the default
// configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ControlEnabled reports whether the named check is active.
func (c *Config) ControlEnabled(name string) bool {
	for _, d := range c.Controls.Disabled {
		if d == name {
			return false
		}
	}
	return true
}
