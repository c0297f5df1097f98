package config

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Read reads and validates the config file at path. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func Read(path string) (cfg *Config, err error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open config %q", path)
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	return FromReader(path, f)
}

// FromReader reads a config from r. originalPath picks the format and is recorded on the config.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := &Config{ConfigFilePath: originalPath}
	if isYAML(originalPath) {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrap(err, "failed to decode config from yaml")
		}
	} else {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode config from json")
		}
	}
	if err := cfg.Ensure(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

// Write encodes cfg in the format matching path.
func Write(cfg *Config, path string) error {
	var buf bytes.Buffer
	if isYAML(path) {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(cfg); err != nil {
			return err
		}
	}
	return errors.Wrapf(os.WriteFile(path, buf.Bytes(), 0o600), "cannot write config %q", path)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
