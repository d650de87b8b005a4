// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package base holds the configuration shared by the optmd commands.
package base

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/optmd/pkg/util/humanizeutil"
	"github.com/cockroachdb/optmd/pkg/util/log"
	"gopkg.in/yaml.v3"
)

// Config is the configuration of a metadata session.
type Config struct {
	Metadata MetadataConfig `yaml:"metadata"`
	Log      LogConfig      `yaml:"log"`
}

// MetadataConfig configures metadata queries.
type MetadataConfig struct {
	// MaxSubstitutions bounds join predicate inference and lineage
	// expansion.
	MaxSubstitutions int `yaml:"max_substitutions"`
	// LazyCache enables the cache tier that survives across queries while
	// node timestamps are unchanged.
	LazyCache bool `yaml:"lazy_cache"`
	// LazyCacheEntries caps the lazy cache; zero means no limit.
	LazyCacheEntries int `yaml:"lazy_cache_entries"`
	// MemoryLimit, in humanized bytes, flags the nodes whose cumulative
	// memory estimate exceeds it. Empty means no limit.
	MemoryLimit string `yaml:"memory_limit,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int32      `yaml:"verbosity"`
	Format    log.Format `yaml:"format"`
}

// DefaultConfig returns the configuration used for settings absent from the
// configuration file.
func DefaultConfig() Config {
	return Config{
		Metadata: MetadataConfig{
			MaxSubstitutions: DefaultMaxSubstitutions,
			LazyCache:        true,
			LazyCacheEntries: DefaultLazyCacheEntries,
		},
		Log: LogConfig{Format: log.FormatText},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Metadata.MaxSubstitutions < 1 {
		return errors.Newf("metadata.max_substitutions must be positive, found %d",
			c.Metadata.MaxSubstitutions)
	}
	if c.Metadata.LazyCacheEntries < 0 {
		return errors.Newf("metadata.lazy_cache_entries must not be negative, found %d",
			c.Metadata.LazyCacheEntries)
	}
	if _, err := c.Metadata.MemoryLimitBytes(); err != nil {
		return err
	}
	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must not be negative, found %d", c.Log.Verbosity)
	}
	switch c.Log.Format {
	case log.FormatText, log.FormatJSON:
	default:
		return errors.Newf("log.format must be %q or %q, found %q",
			log.FormatText, log.FormatJSON, c.Log.Format)
	}
	return nil
}

// MemoryLimitBytes returns the parsed memory limit, or 0 if there is none.
func (m *MetadataConfig) MemoryLimitBytes() (int64, error) {
	if m.MemoryLimit == "" {
		return 0, nil
	}
	n, err := humanizeutil.ParseBytes(m.MemoryLimit)
	if err != nil {
		return 0, errors.Wrap(err, "metadata.memory_limit")
	}
	if n < 0 {
		return 0, errors.Newf("metadata.memory_limit must not be negative, found %s", m.MemoryLimit)
	}
	return n, nil
}

// DecodeConfig reads a YAML configuration on top of the defaults. Unknown
// fields are rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "decoding configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads the configuration file at path. An empty path loads the
// file named by $OPTMD_CONFIG, or DefaultConfigFile if that exists, and
// falls back to the defaults otherwise.
func LoadConfig(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		if path = os.Getenv(EnvConfigFile); path != "" {
			explicit = true
		} else {
			path = DefaultConfigFile
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return Config{}, errors.Wrapf(err, "loading configuration")
	}
	cfg, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}
