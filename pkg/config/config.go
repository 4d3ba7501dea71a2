// Package config loads host configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justyntemme/gopd/pkg/debug"
)

// Config describes how a host runs the engine.
type Config struct {
	// Patch is the patch file to open.
	Patch string `yaml:"patch"`

	// SearchPaths are added to the engine's search path, in order.
	SearchPaths []string `yaml:"search_paths,omitempty"`

	Audio Audio `yaml:"audio"`
	Drain Drain `yaml:"drain"`

	// Bindings are receiver names the host subscribes to.
	Bindings []string `yaml:"bindings,omitempty"`

	// Instances is the number of engine instances to create, each with the patch open.
	Instances int `yaml:"instances,omitempty"`

	LogLevel string `yaml:"log_level,omitempty"`
	Verbose  bool   `yaml:"verbose,omitempty"`
}

// Audio is the block processing setup.
type Audio struct {
	Inputs     int `yaml:"inputs"`
	Outputs    int `yaml:"outputs"`
	SampleRate int `yaml:"sample_rate"`
	// BlockTicks is the number of engine ticks per processed buffer.
	BlockTicks int `yaml:"block_ticks"`
}

// Drain controls how queued events are delivered.
type Drain struct {
	// Interval is the period of the background drain loop.
	Interval time.Duration `yaml:"interval"`
	// PerBlock drains after every processed buffer instead of on a timer.
	PerBlock bool `yaml:"per_block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Audio: Audio{
			Inputs:     0,
			Outputs:    2,
			SampleRate: 44100,
			BlockTicks: 1,
		},
		Drain: Drain{
			Interval: 5 * time.Millisecond,
			PerBlock: true,
		},
		Instances: 1,
		LogLevel:  "info",
	}
}

// Load reads a YAML file over the defaults. Unknown fields are rejected.
// Relative patch and search paths resolve against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if cfg.Patch != "" && !filepath.IsAbs(cfg.Patch) {
		cfg.Patch = filepath.Join(base, cfg.Patch)
	}
	for i, p := range cfg.SearchPaths {
		if !filepath.IsAbs(p) {
			cfg.SearchPaths[i] = filepath.Join(base, p)
		}
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Audio.Inputs < 0 || c.Audio.Outputs < 0 {
		errs = append(errs, fmt.Errorf("audio channel counts must not be negative"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.BlockTicks <= 0 {
		errs = append(errs, fmt.Errorf("audio.block_ticks must be positive, got %d", c.Audio.BlockTicks))
	}
	if c.Drain.Interval <= 0 {
		errs = append(errs, fmt.Errorf("drain.interval must be positive, got %s", c.Drain.Interval))
	}
	if c.Instances <= 0 {
		errs = append(errs, fmt.Errorf("instances must be positive, got %d", c.Instances))
	}
	for i, b := range c.Bindings {
		if b == "" {
			errs = append(errs, fmt.Errorf("bindings[%d] is empty", i))
		}
	}
	if _, _, err := debug.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
