// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package base_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/optmd/pkg/base"
	"github.com/cockroachdb/optmd/pkg/util/log"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDecodeConfig(t *testing.T) {
	cfg, err := base.DecodeConfig(strings.NewReader(`
metadata:
  max_substitutions: 16
  lazy_cache: false
  memory_limit: 64MiB
log:
  verbosity: 2
  format: json
`))
	require.NoError(t, err)
	exp := base.Config{
		Metadata: base.MetadataConfig{
			MaxSubstitutions: 16,
			LazyCacheEntries: base.DefaultLazyCacheEntries,
			MemoryLimit:      "64MiB",
		},
		Log: base.LogConfig{Verbosity: 2, Format: log.FormatJSON},
	}
	if diff := cmp.Diff(exp, cfg); diff != "" {
		t.Fatalf("unexpected configuration (-want +got):\n%s", diff)
	}
	limit, err := cfg.Metadata.MemoryLimitBytes()
	require.NoError(t, err)
	require.Equal(t, int64(64<<20), limit)

	// An empty document yields the defaults.
	cfg, err = base.DecodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, base.DefaultConfig(), cfg)
}

func TestConfigErrors(t *testing.T) {
	testCases := []struct {
		doc string
		err string
	}{
		{"metadata: {max_substitution: 3}", "field max_substitution not found"},
		{"metadata: {max_substitutions: 0}", "max_substitutions must be positive"},
		{"metadata: {lazy_cache_entries: -1}", "lazy_cache_entries must not be negative"},
		{"metadata: {memory_limit: lots}", "metadata.memory_limit"},
		{"log: {format: xml}", `log.format must be "text" or "json"`},
		{"log: {verbosity: -1}", "log.verbosity must not be negative"},
	}
	for _, tc := range testCases {
		_, err := base.DecodeConfig(strings.NewReader(tc.doc))
		require.ErrorContains(t, err, tc.err, tc.doc)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optmd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log: {verbosity: 1}\n"), 0o644))

	cfg, err := base.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, int32(1), cfg.Log.Verbosity)
	require.Equal(t, base.DefaultMaxSubstitutions, cfg.Metadata.MaxSubstitutions)

	t.Setenv(base.EnvConfigFile, path)
	cfg, err = base.LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, int32(1), cfg.Log.Verbosity)

	_, err = base.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorContains(t, err, "loading configuration")

	require.NoError(t, os.WriteFile(path, []byte("log: [\n"), 0o644))
	_, err = base.LoadConfig(path)
	require.ErrorContains(t, err, path)
}
