// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath string
	version    string
	lookup     LookupFunc

	// ConsumedEnvKeys lists the CAMD_* variables read by the last Load.
	ConsumedEnvKeys []string
}

// NewLoader creates a new configuration loader. An empty path loads defaults
// and environment only.
func NewLoader(configPath, version string) *Loader {
	return &Loader{configPath: configPath, version: version}
}

// WithLookup replaces os.LookupEnv, mainly for tests.
func (l *Loader) WithLookup(fn LookupFunc) *Loader {
	l.lookup = fn
	return l
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.configPath
}

// Load loads configuration with precedence: defaults < file < environment,
// then validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	env := newEnvReader(l.lookup)
	applyEnv(&cfg, env)
	l.ConsumedEnvKeys = l.ConsumedEnvKeys[:0]
	for k := range env.consumed {
		l.ConsumedEnvKeys = append(l.ConsumedEnvKeys, k)
	}
	sort.Strings(l.ConsumedEnvKeys)

	if l.version != "" {
		cfg.Version = l.version
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes a single strict YAML document over cfg.
func (l *Loader) loadFile(path string, cfg *Config) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("config file contains multiple documents or trailing content")
	}
	return nil
}
